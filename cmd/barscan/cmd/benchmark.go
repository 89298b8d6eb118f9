package cmd

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/barscan/internal/benchmark"
	"github.com/MeKo-Tech/barscan/internal/utils"
	"github.com/spf13/cobra"
)

// benchmarkCmd times the pipeline on a set of images.
var benchmarkCmd = &cobra.Command{
	Use:   "benchmark [files or directories...]",
	Short: "Measure pipeline latency per image and per stage",
	Long: `Run the pipeline repeatedly on the given images and report the average
duration per image, a per-stage breakdown and the memory allocated.

Examples:
  barscan benchmark label.png
  barscan benchmark photos/ --iterations 20 --decoder none`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runBenchmark,
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	iterations, _ := cmd.Flags().GetInt("iterations")
	if iterations < 1 {
		return fmt.Errorf("invalid iterations %d: must be at least 1", iterations)
	}

	paths, err := utils.ListImages(args, false)
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no supported images found in %v", args)
	}

	pl, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	bench := benchmark.NewPipelineBenchmark(pl)
	if noWarmup, _ := cmd.Flags().GetBool("no-warmup"); noWarmup {
		bench.WithoutWarmup()
	}
	for _, path := range paths {
		img, _, err := utils.LoadImage(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		bench.AddImage(path, img)
	}

	report := bench.Run(cmd.Context(), iterations)
	if err := benchmark.WriteReport(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	var errs []error
	for _, r := range report.Results {
		if r.Error != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Error))
		}
	}
	return errors.Join(errs...)
}

func init() {
	rootCmd.AddCommand(benchmarkCmd)
	addPipelineFlags(benchmarkCmd)
	benchmarkCmd.Flags().IntP("iterations", "n", 10, "measured runs per image")
	benchmarkCmd.Flags().Bool("no-warmup", false, "skip the warmup run")
}
