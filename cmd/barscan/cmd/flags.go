package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/barscan/internal/config"
	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// viperKeyAnnotation marks a flag with the configuration key it overrides.
const viperKeyAnnotation = "barscan_viper_key"

// flagBinding maps a configuration key to a command-line flag.
type flagBinding struct {
	key  string
	flag string
}

// annotateFlags records the configuration key of every binding on its flag.
// The keys are bound to viper when the command runs, so commands sharing a
// key do not overwrite each other's binding.
func annotateFlags(fs *pflag.FlagSet, bindings []flagBinding) {
	for _, b := range bindings {
		if err := fs.SetAnnotation(b.flag, viperKeyAnnotation, []string{b.key}); err != nil {
			panic(fmt.Sprintf("failed to annotate flag %s: %v", b.flag, err))
		}
	}
}

// bindFlags binds the annotated flags of the executing command to v.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[viperKeyAnnotation]
		if len(keys) == 0 || bindErr != nil {
			return
		}
		if err := v.BindPFlag(keys[0], f); err != nil {
			bindErr = fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

// ResetFlags restores every flag of the command tree to its default value
// and clears its changed state. In-process harnesses call it between runs.
func ResetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		ResetFlags(c)
	}
}

// addPipelineFlags registers the stage parameters shared by every command
// that runs the pipeline.
func addPipelineFlags(cmd *cobra.Command) {
	def := config.DefaultConfig().Pipeline
	fs := cmd.Flags()

	fs.Int("blur-kernel", def.Detector.BlurKernel, "Gaussian blur kernel size (odd)")
	fs.Float64("blur-sigma", def.Detector.BlurSigma, "Gaussian blur sigma (0 derives it from the kernel)")
	fs.Int("block-size", def.Detector.AdaptiveBlockSize, "adaptive threshold neighbourhood size (odd, >= 3)")
	fs.Float64("offset", def.Detector.AdaptiveOffset, "adaptive threshold offset subtracted from the local mean")
	fs.Int("morph-kernel", def.Detector.MorphKernel, "closing rectangle size")
	fs.Int("morph-iterations", def.Detector.MorphIterations, "closing iterations")
	fs.Float64("min-area", def.Detector.MinArea, "minimum contour area of a barcode candidate")

	fs.String("interpolation", def.Rectify.Interpolation, "rotation interpolation: nearest, linear, cubic")
	fs.String("border-mode", def.Rectify.BorderMode, "rotation border fill: replicate, constant")
	fs.Int("padding", def.Rectify.Padding, "extra pixels around the region of interest")
	fs.String("rectify-debug-dir", "", "directory to write deskew debug images")

	fs.String("decoder", def.Decoder.Name, "symbol decoder: zxing, none")
	fs.StringSlice("formats", nil, "restrict decoding to these formats (e.g. qr,code128,ean13)")
	fs.Bool("try-harder", def.Decoder.TryHarder, "spend more time looking for symbols")
	fs.Bool("pure-barcode", def.Decoder.PureBarcode, "treat the region as a clean, unrotated symbol")
	fs.String("stages-dir", "", "directory to write every stage raster as PNG")

	annotateFlags(fs, []flagBinding{
		{"pipeline.detector.blur_kernel", "blur-kernel"},
		{"pipeline.detector.blur_sigma", "blur-sigma"},
		{"pipeline.detector.adaptive_block_size", "block-size"},
		{"pipeline.detector.adaptive_offset", "offset"},
		{"pipeline.detector.morph_kernel", "morph-kernel"},
		{"pipeline.detector.morph_iterations", "morph-iterations"},
		{"pipeline.detector.min_area", "min-area"},
		{"pipeline.rectify.interpolation", "interpolation"},
		{"pipeline.rectify.border_mode", "border-mode"},
		{"pipeline.rectify.padding", "padding"},
		{"pipeline.rectify.debug_dir", "rectify-debug-dir"},
		{"pipeline.decoder.name", "decoder"},
		{"pipeline.decoder.formats", "formats"},
		{"pipeline.decoder.try_harder", "try-harder"},
		{"pipeline.decoder.pure_barcode", "pure-barcode"},
		{"pipeline.stages_dir", "stages-dir"},
	})
}

// addOutputFlags registers the result formatting flags.
func addOutputFlags(cmd *cobra.Command, withOverlay bool) {
	fs := cmd.Flags()
	fs.StringP("format", "f", pipeline.FormatText, "output format (text, json, csv, yaml)")
	fs.StringP("output", "o", "", "output file (default: stdout)")
	bindings := []flagBinding{
		{"output.format", "format"},
		{"output.file", "output"},
	}
	if withOverlay {
		fs.String("overlay-dir", "", "directory to write overlay images")
		bindings = append(bindings, flagBinding{"output.overlay_dir", "overlay-dir"})
	}
	annotateFlags(fs, bindings)
}

// buildPipeline creates the pipeline described by cfg.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	pl, err := pipeline.NewBuilder().WithConfig(cfg.ToPipelineConfig()).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	return pl, nil
}

// writeResults formats results and writes them to the configured output
// file or to the command's stdout.
func writeResults(cmd *cobra.Command, cfg *config.Config, results []*pipeline.Result) error {
	out, err := pipeline.Format(results, cfg.Output.Format)
	if err != nil {
		return err
	}
	if cfg.Output.File != "" {
		if err := os.WriteFile(cfg.Output.File, []byte(out), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", cfg.Output.File)
		return err
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	if _, err := fmt.Fprint(cmd.OutOrStdout(), out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// overlayPath returns the overlay file name for source inside dir. PDF
// sources such as doc.pdf#page=1&image=0 become doc_pdf_page1_image0.
func overlayPath(dir, source string) string {
	name := filepath.Base(source)
	if utils.IsSupportedImage(name) {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	name = overlayNameReplacer.Replace(name)
	return filepath.Join(dir, name+"_overlay.png")
}

var overlayNameReplacer = strings.NewReplacer(".", "_", "#", "_", "&", "_", "=", "")
