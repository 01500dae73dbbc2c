package main

import (
	"context"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Veraticus/digitpad/internal/classifier"
	"github.com/Veraticus/digitpad/internal/cli"
	"github.com/Veraticus/digitpad/internal/inference"
	"github.com/Veraticus/digitpad/internal/model"
	"github.com/Veraticus/digitpad/internal/pad"
	"github.com/Veraticus/digitpad/internal/script"
	"github.com/Veraticus/digitpad/internal/surface"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func replayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay SCRIPT",
		Short: "Replay a stroke script",
		Long: `Replay a YAML stroke script against a fresh surface and print every
prediction the pipeline publishes along the way.

Examples:
  digitpad replay testdata/seven.yaml
  digitpad replay --fast --snapshot seven.png testdata/seven.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: runReplay,
	}

	// Flags
	cmd.Flags().Bool("fast", false, "Skip the delays written in the script")
	cmd.Flags().String("snapshot", "", "Write the final drawing to this PNG file")

	// Bind to viper
	_ = viper.BindPFlag("replay.fast", cmd.Flags().Lookup("fast"))
	_ = viper.BindPFlag("replay.snapshot", cmd.Flags().Lookup("snapshot"))

	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	s, err := script.Load(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	surf, err := newSurface(cfg, logger)
	if err != nil {
		return err
	}

	c, err := classifier.New(cfg.Classifier, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := c.Close(); closeErr != nil {
			slog.Error("Failed to close classifier", "error", closeErr)
		}
	}()

	hist, err := openSession(ctx, cfg, "replay", logger)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer hist.Close()

	out := cmd.OutOrStdout()
	sink := hist.sinks(printSink(out))
	pipeline := inference.New(surf, c, sink, pipelineOptions(cfg, logger)...)
	defer pipeline.Close()

	if err := pipeline.Load(ctx, modelName(cfg)); err != nil {
		return err
	}

	opts := []script.PlayerOption{script.WithLogger(logger)}
	if viper.GetBool("replay.fast") {
		opts = append(opts, script.WithSleep(func(ctx context.Context, _ time.Duration) error {
			return ctx.Err()
		}))
	}

	controller := pad.NewController(surf, pipeline, cfg.Brush, logger)
	if err := script.NewPlayer(controller, opts...).Play(ctx, s); err != nil {
		return fmt.Errorf("replay of %s failed: %w", args[0], err)
	}

	// A debounce armed by the last move may still be pending.
	if err := waitFor(ctx, cfg.Pipeline.Debounce); err != nil {
		return err
	}
	pipeline.Wait()

	if last, ok := pipeline.LastPrediction(); ok && last.Known() {
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%s reads as %s", scriptName(s, args[0]), last)))
	} else {
		fmt.Fprintln(out, cli.FormatWarning("no prediction was made"))
	}

	if path := viper.GetString("replay.snapshot"); path != "" {
		if err := writeSnapshot(path, surf); err != nil {
			return err
		}
	}
	return nil
}

// printSink writes each prediction and error as a line.
func printSink(w io.Writer) inference.FuncSink {
	return inference.FuncSink{
		OnPrediction: func(p model.Prediction) {
			fmt.Fprintln(w, cli.FormatPrediction(fmt.Sprintf("%-10s", p.Trigger), p))
		},
		OnError: func(err error) {
			fmt.Fprintln(w, cli.FormatError(err.Error()))
		},
	}
}

func waitFor(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func scriptName(s *script.Script, path string) string {
	if s.Name != "" {
		return s.Name
	}
	return path
}

func writeSnapshot(path string, s *surface.Surface) error {
	f, err := os.Create(path) // #nosec G304 - user-provided output path
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	if err := png.Encode(f, s.Snapshot()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return f.Close()
}
