package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/barscan/internal/config"
	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/utils"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command for parallel image processing.
var batchCmd = &cobra.Command{
	Use:   "batch [files or directories...]",
	Short: "Process many images in parallel",
	Long: `Process image files and directories with a pool of workers. Results keep
the input order; an image without a barcode is reported and the batch goes on
unless --fail-fast is set.

Examples:
  barscan batch *.jpg *.png
  barscan batch photos/ --recursive --workers 8
  barscan batch scans/ --format csv --output results.csv --progress`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}

	paths, err := utils.ListImages(args, cfg.Batch.Recursive)
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no supported images found in %v", args)
	}

	pipeCfg := cfg.ToPipelineConfig()
	var progress pipeline.ProgressCallback = pipeline.NewLogProgressCallback(slog.Default(), slog.LevelDebug)
	if showProgress, _ := cmd.Flags().GetBool("progress"); showProgress {
		progress = pipeline.MultiProgressCallback{
			progress,
			pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Scanning "),
		}
	}
	pipeCfg.Parallel.ProgressCallback = progress

	pl, err := pipeline.NewBuilder().WithConfig(pipeCfg).Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	results, stats, batchErr := pl.ProcessFiles(cmd.Context(), paths)
	slog.Info("Batch completed",
		"total", stats.Total,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"symbols", stats.Symbols,
		"workers", stats.Workers,
		"duration", stats.Duration.String())

	if err := writeBatchOverlays(cmd, cfg, results); err != nil {
		return err
	}
	if err := writeResults(cmd, cfg, results); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(cmd.ErrOrStderr(), "Processed %d image(s): %d succeeded, %d failed, %d symbol(s) in %s\n",
		stats.Total, stats.Succeeded, stats.Failed, stats.Symbols, stats.Duration.Round(time.Millisecond)); err != nil {
		return err
	}
	if batchErr != nil {
		return fmt.Errorf("batch stopped: %w", batchErr)
	}
	return nil
}

// writeBatchOverlays reloads each processed input to draw its overlay; batch
// results do not keep the decoded source image.
func writeBatchOverlays(cmd *cobra.Command, cfg *config.Config, results []*pipeline.Result) error {
	if cfg.Output.OverlayDir == "" {
		return nil
	}
	for _, res := range results {
		if res.Artifacts == nil {
			continue
		}
		img, _, err := utils.LoadImage(res.Source)
		if err != nil {
			slog.Warn("Skipping overlay", "file", res.Source, "error", err)
			continue
		}
		if err := saveOverlay(cmd, cfg, img, res); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addOutputFlags(batchCmd, true)
	addPipelineFlags(batchCmd)

	def := config.DefaultConfig().Batch
	batchCmd.Flags().BoolP("recursive", "r", def.Recursive, "walk directories recursively")
	batchCmd.Flags().IntP("workers", "w", def.Workers, "number of parallel workers")
	batchCmd.Flags().Bool("fail-fast", def.FailFast, "stop at the first image that fails")
	batchCmd.Flags().Bool("progress", false, "show a progress bar on stderr")
	annotateFlags(batchCmd.Flags(), []flagBinding{
		{"batch.recursive", "recursive"},
		{"batch.workers", "workers"},
		{"batch.fail_fast", "fail-fast"},
	})
}
