package main

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/Veraticus/digitpad/internal/classifier"
	"github.com/Veraticus/digitpad/internal/common"
	"github.com/Veraticus/digitpad/internal/inference"
	"github.com/Veraticus/digitpad/internal/tui"
	"github.com/Veraticus/digitpad/internal/tui/themes"
	"github.com/Veraticus/digitpad/internal/window"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// sinkBuffer holds predictions the interface has not drawn yet.
const sinkBuffer = 16

func drawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Open the drawing pad",
		Long: `Open an interactive pad and classify digits while you draw.

The pad runs in the terminal by default; drag with the left mouse button to
draw. --window opens a desktop window instead, which also accepts touch.

Keys: b brush, e eraser, +/- width, c clear, enter classify, ? help, q quit.`,
		RunE: runDraw,
	}

	// Flags
	cmd.Flags().BoolP("window", "w", false, "Open a desktop window instead of the terminal pad")
	cmd.Flags().String("theme", "default", "Terminal theme ("+strings.Join(themes.Names(), ", ")+")")
	cmd.Flags().Int("scale", 2, "Window pixels per surface pixel")
	cmd.Flags().Bool("no-preview", false, "Hide the 28x28 model input in the terminal pad")

	// Bind to viper
	_ = viper.BindPFlag("draw.window", cmd.Flags().Lookup("window"))
	_ = viper.BindPFlag("draw.theme", cmd.Flags().Lookup("theme"))
	_ = viper.BindPFlag("draw.scale", cmd.Flags().Lookup("scale"))
	_ = viper.BindPFlag("draw.no_preview", cmd.Flags().Lookup("no-preview"))

	return cmd
}

func runDraw(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	useWindow := viper.GetBool("draw.window")
	theme := viper.GetString("draw.theme")
	if !slices.Contains(themes.Names(), theme) {
		return common.NewUserError(fmt.Sprintf("unknown theme %q", theme), common.ErrInvalidArgument)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Log lines would tear the terminal pad.
	logger := slog.Default()
	if !useWindow {
		logger = common.DiscardLogger()
	}

	s, err := newSurface(cfg, logger)
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

	hist, err := openSession(ctx, cfg, "draw", logger)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer hist.Close()

	sink := inference.NewChanSink(sinkBuffer)
	pipeline := inference.New(s, c, hist.sinks(sink), pipelineOptions(cfg, logger)...)
	defer pipeline.Close()

	if useWindow {
		return window.Run(ctx, window.Config{
			Surface:   s,
			Pipeline:  pipeline,
			Sink:      sink,
			Logger:    logger,
			ModelPath: modelName(cfg),
			Brush:     cfg.Brush,
			Scale:     viper.GetInt("draw.scale"),
		})
	}

	return tui.Run(ctx,
		tui.WithSurface(s),
		tui.WithPipeline(pipeline, sink),
		tui.WithTheme(themes.GetTheme(theme)),
		tui.WithBrush(cfg.Brush),
		tui.WithModelPath(modelName(cfg)),
		tui.WithInputPreview(!viper.GetBool("draw.no_preview")),
	)
}
