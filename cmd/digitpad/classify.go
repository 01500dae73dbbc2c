package main

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/Veraticus/digitpad/internal/classifier"
	"github.com/Veraticus/digitpad/internal/cli"
	"github.com/Veraticus/digitpad/internal/common"
	"github.com/Veraticus/digitpad/internal/config"
	"github.com/Veraticus/digitpad/internal/inference"
	"github.com/Veraticus/digitpad/internal/model"
	"github.com/Veraticus/digitpad/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	_ "golang.org/x/image/bmp"  // BMP decoder
	_ "golang.org/x/image/tiff" // TIFF decoder
	_ "golang.org/x/image/webp" // WebP decoder
	"golang.org/x/sync/errgroup"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify FILE...",
		Short: "Classify digit images",
		Long: `Classify image files the same way the pad classifies a drawing.

Each image is scaled onto a blank surface, so it goes through the same
downsampling as live strokes. Bright ink on a dark background is expected;
use --invert for dark ink on paper.

Examples:
  digitpad classify seven.png
  digitpad classify --invert scans/*.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: runClassify,
	}

	// Flags
	cmd.Flags().Bool("invert", false, "Treat dark pixels as ink")
	cmd.Flags().IntP("jobs", "j", runtime.NumCPU(), "Images classified at once")

	// Bind to viper
	_ = viper.BindPFlag("classify.invert", cmd.Flags().Lookup("invert"))
	_ = viper.BindPFlag("classify.jobs", cmd.Flags().Lookup("jobs"))

	return cmd
}

// fileResult is the outcome for one input image.
type fileResult struct {
	Err        error
	Path       string
	Prediction model.Prediction
}

func runClassify(cmd *cobra.Command, paths []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	cfg, err := loadConfig()
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

	if err := c.Load(ctx, modelName(cfg)); err != nil {
		return common.NewUserError("the digit model could not be loaded", &common.LoadError{Path: modelName(cfg), Err: err})
	}

	hist, err := openSession(ctx, cfg, "classify", logger)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer hist.Close()

	var progress *cli.Progress
	if len(paths) > 1 {
		progress = cli.NewProgress(os.Stderr, len(paths), "Classifying images...")
	}

	results, err := classifyFiles(ctx, paths, c, cfg, viper.GetBool("classify.invert"), viper.GetInt("classify.jobs"), progress)
	if err != nil {
		return err
	}
	progress.Finish()

	return reportResults(cmd.OutOrStdout(), results, hist.sinks())
}

// classifyFiles classifies paths concurrently. Per-file failures are kept in
// the results, which are returned in input order; only cancellation aborts.
func classifyFiles(ctx context.Context, paths []string, c service.Classifier, cfg *config.Config, invert bool, jobs int, progress *cli.Progress) ([]fileResult, error) {
	results := make([]fileResult, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, jobs))

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := classifyFile(ctx, path, c, cfg, invert)
			results[i] = fileResult{Path: path, Prediction: p, Err: err}
			progress.Done()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func classifyFile(ctx context.Context, path string, c service.Classifier, cfg *config.Config, invert bool) (model.Prediction, error) {
	img, err := decodeImage(path)
	if err != nil {
		return model.Prediction{}, err
	}

	s, err := newSurface(cfg, common.DiscardLogger())
	if err != nil {
		return model.Prediction{}, err
	}
	s.LoadImage(img, invert)

	ctx, cancel := context.WithTimeout(ctx, cfg.Pipeline.RunTimeout)
	defer cancel()
	return inference.Classify(ctx, s, c, model.InputWidth, model.InputHeight)
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path) // #nosec G304 - user-provided image path
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("Failed to close image", "path", path, "error", closeErr)
		}
	}()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// reportResults prints one line per file and publishes successes to sink.
func reportResults(w io.Writer, results []fileResult, sink service.PredictionSink) error {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintln(w, cli.FormatError(fmt.Sprintf("%s: %v", r.Path, r.Err)))
			continue
		}
		sink.Publish(r.Prediction)
		fmt.Fprintln(w, cli.FormatPrediction(r.Path, r.Prediction))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images could not be classified", failed, len(results))
	}
	return nil
}
