package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/digitpad/internal/cli"
	"github.com/Veraticus/digitpad/internal/common"
	"github.com/Veraticus/digitpad/internal/config"
	"github.com/Veraticus/digitpad/internal/service"
	"github.com/Veraticus/digitpad/internal/sheets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded predictions",
		Long: `Show the predictions recorded by draw, classify and replay, with a
per-digit summary. --export-sheet writes the same data to Google Sheets.

Examples:
  digitpad history
  digitpad history --limit 100 --format json
  digitpad history --session 2f1c... --export-sheet`,
		RunE: runHistory,
	}

	// Flags
	cmd.Flags().IntP("limit", "n", 20, "Number of recent predictions to show")
	cmd.Flags().String("session", "", "Only show predictions from this session")
	cmd.Flags().String("format", "table", "Output format (table, json)")
	cmd.Flags().Bool("export-sheet", false, "Export to Google Sheets")

	// Bind to viper
	_ = viper.BindPFlag("history_cmd.limit", cmd.Flags().Lookup("limit"))
	_ = viper.BindPFlag("history_cmd.session", cmd.Flags().Lookup("session"))
	_ = viper.BindPFlag("history_cmd.format", cmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("history_cmd.export_sheet", cmd.Flags().Lookup("export-sheet"))

	return cmd
}

// historyOptions selects what the history command reads and how it prints.
type historyOptions struct {
	Session string
	Format  string
	Limit   int
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openHistory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close history database", "error", closeErr)
		}
	}()

	opts := historyOptions{
		Limit:   viper.GetInt("history_cmd.limit"),
		Session: viper.GetString("history_cmd.session"),
		Format:  viper.GetString("history_cmd.format"),
	}
	records, counts, err := loadHistory(ctx, store, opts)
	if err != nil {
		return err
	}

	if viper.GetBool("history_cmd.export_sheet") {
		return exportHistory(ctx, cmd.OutOrStdout(), records, counts)
	}
	return printHistory(cmd.OutOrStdout(), records, counts, opts.Format)
}

func loadHistory(ctx context.Context, store service.HistoryStorage, opts historyOptions) ([]service.PredictionRecord, []service.LabelCount, error) {
	if opts.Limit <= 0 {
		return nil, nil, common.NewUserError("--limit must be positive", common.ErrInvalidArgument)
	}

	var (
		records []service.PredictionRecord
		err     error
	)
	if opts.Session != "" {
		records, err = store.PredictionsBySession(ctx, opts.Session)
		if len(records) > opts.Limit {
			records = records[:opts.Limit]
		}
	} else {
		records, err = store.RecentPredictions(ctx, opts.Limit)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read predictions: %w", err)
	}

	counts, err := store.LabelCounts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count predictions: %w", err)
	}
	return records, counts, nil
}

func printHistory(w io.Writer, records []service.PredictionRecord, counts []service.LabelCount, format string) error {
	switch format {
	case "table", "":
		fmt.Fprintln(w, cli.RenderHistory(records))
		if summary := cli.RenderCounts(counts); summary != "" {
			fmt.Fprintln(w)
			fmt.Fprintln(w, summary)
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Predictions []service.PredictionRecord `json:"predictions"`
			Counts      []service.LabelCount       `json:"counts"`
		}{records, counts})
	default:
		return common.NewUserError(fmt.Sprintf("unknown format %q (table, json)", format), common.ErrInvalidArgument)
	}
}

func exportHistory(ctx context.Context, w io.Writer, records []service.PredictionRecord, counts []service.LabelCount) error {
	sheetsCfg, err := config.LoadSheetsConfig()
	if err != nil {
		return common.NewUserError("Google Sheets is not configured", err)
	}

	writer, err := sheets.NewWriter(ctx, *sheetsCfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create sheets writer: %w", err)
	}
	return exportWith(ctx, w, writer, records, counts)
}

func exportWith(ctx context.Context, w io.Writer, exporter service.HistoryExporter, records []service.PredictionRecord, counts []service.LabelCount) error {
	id, err := exporter.Export(ctx, records, counts)
	if err != nil {
		return fmt.Errorf("failed to export history: %w", err)
	}
	fmt.Fprintln(w, cli.FormatSuccess(fmt.Sprintf("Exported %d predictions to spreadsheet %s", len(records), id)))
	return nil
}
