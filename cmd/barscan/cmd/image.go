package cmd

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/barscan/internal/config"
	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/utils"
	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
)

// errNoBarcode is returned when at least one input had no locatable barcode.
var errNoBarcode = errors.New("no barcode found")

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image [files...]",
	Short: "Locate, straighten and decode the barcode in images",
	Long: `Process one or more image files: locate the dominant barcode, correct its
skew, crop the region of interest and decode it.

Supported formats: PNG, JPEG, GIF, BMP, TIFF, WebP

Examples:
  barscan image label.png
  barscan image *.jpg --format json
  barscan image shelf.jpg --stages-dir debug/ --overlay-dir overlays/`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runImage,
}

func runImage(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("no input files provided")
	}
	cfg, err := GetConfig()
	if err != nil {
		return err
	}

	// Stage rasters get a per-file prefix instead of the shared sink.
	stagesDir := cfg.Pipeline.StagesDir
	cfg.Pipeline.StagesDir = ""
	pl, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	results := make([]*pipeline.Result, 0, len(args))
	var missing int
	for _, path := range args {
		if !utils.IsSupportedImage(path) {
			return fmt.Errorf("unsupported image format: %s", path)
		}
		img, _, err := utils.LoadImage(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}

		observers := pipeline.MultiObserver{pipeline.LogObserver{}}
		if stagesDir != "" {
			observers = append(observers, pipeline.NewDirObserver(stagesDir, fileStem(path)))
		}
		res, err := pl.WithObserver(observers).Process(cmd.Context(), img)
		res.Source = path
		if err != nil {
			if !pipeline.IsGeometryError(err) {
				return fmt.Errorf("processing failed for %s: %w", path, err)
			}
			missing++
			slog.Warn("No barcode located", "file", path, "error", err)
		}
		if err := saveOverlay(cmd, cfg, img, res); err != nil {
			return err
		}
		results = append(results, res)
	}

	if err := writeResults(cmd, cfg, results); err != nil {
		return err
	}
	if missing > 0 {
		return fmt.Errorf("%w in %d of %d image(s)", errNoBarcode, missing, len(args))
	}
	return nil
}

// saveOverlay writes the annotated input when an overlay directory is set.
func saveOverlay(cmd *cobra.Command, cfg *config.Config, img image.Image, res *pipeline.Result) error {
	dir := cfg.Output.OverlayDir
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create overlay directory: %w", err)
	}
	path := overlayPath(dir, res.Source)
	if err := imaging.Save(pipeline.RenderOverlay(img, res), path); err != nil {
		return fmt.Errorf("failed to write overlay %s: %w", path, err)
	}
	_, err := fmt.Fprintf(cmd.ErrOrStderr(), "Saved overlay: %s\n", path)
	return err
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func init() {
	rootCmd.AddCommand(imageCmd)
	addOutputFlags(imageCmd, true)
	addPipelineFlags(imageCmd)
}
