// Package pipeline drives the barcode localization stages end to end: it runs
// detection, skew correction, ROI extraction and decoding, reports every
// intermediate raster to an Observer and records stage timings.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/detector"
	"github.com/MeKo-Tech/barscan/internal/rectify"
)

// Config holds configuration for the pipeline and its components.
type Config struct {
	Detector detector.Config
	Rectify  rectify.Config
	Barcode  barcode.Options
	// DecoderName selects the built-in decoder ("zxing" or "none") when no
	// decoder instance is supplied.
	DecoderName string
	// StagesDir, when set, writes every stage raster as PNG.
	StagesDir string

	Parallel ParallelConfig
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Detector:    detector.DefaultConfig(),
		Rectify:     rectify.DefaultConfig(),
		Barcode:     barcode.Options{TryHarder: true},
		DecoderName: "zxing",
		Parallel:    DefaultParallelConfig(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg      Config
	decoder  barcode.Decoder
	observer Observer
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithDetectorConfig replaces the detection parameters.
func (b *Builder) WithDetectorConfig(cfg detector.Config) *Builder {
	b.cfg.Detector = cfg
	return b
}

// WithRectifyConfig replaces the skew correction and ROI parameters.
func (b *Builder) WithRectifyConfig(cfg rectify.Config) *Builder {
	b.cfg.Rectify = cfg
	return b
}

// WithMinArea sets the contour area a candidate must exceed.
func (b *Builder) WithMinArea(area float64) *Builder {
	if area >= 0 {
		b.cfg.Detector.MinArea = area
	}
	return b
}

// WithBlurKernel sets the Gaussian kernel used by detection and ROI
// re-smoothing.
func (b *Builder) WithBlurKernel(k int) *Builder {
	if k > 0 {
		b.cfg.Detector.BlurKernel = k
		b.cfg.Rectify.BlurKernel = k
	}
	return b
}

// WithAdaptiveThreshold sets the local threshold block size and offset.
func (b *Builder) WithAdaptiveThreshold(blockSize int, offset float64) *Builder {
	if blockSize > 0 {
		b.cfg.Detector.AdaptiveBlockSize = blockSize
	}
	b.cfg.Detector.AdaptiveOffset = offset
	return b
}

// WithMorphKernel sets the closing element size.
func (b *Builder) WithMorphKernel(k int) *Builder {
	if k > 0 {
		b.cfg.Detector.MorphKernel = k
	}
	return b
}

// WithInterpolation selects the de-skew resampling kernel.
func (b *Builder) WithInterpolation(interp rectify.Interpolation) *Builder {
	if interp != "" {
		b.cfg.Rectify.Interpolation = interp
	}
	return b
}

// WithBorderMode selects how the rotation samples outside the raster.
func (b *Builder) WithBorderMode(mode rectify.BorderMode) *Builder {
	if mode != "" {
		b.cfg.Rectify.BorderMode = mode
	}
	return b
}

// WithPadding grows the ROI box before clamping.
func (b *Builder) WithPadding(px int) *Builder {
	if px >= 0 {
		b.cfg.Rectify.Padding = px
	}
	return b
}

// WithRectifyDebugDir enables skew overlay and ROI compare dumps into dir.
func (b *Builder) WithRectifyDebugDir(dir string) *Builder {
	b.cfg.Rectify.DebugDir = dir
	return b
}

// WithStagesDir writes every stage raster into dir.
func (b *Builder) WithStagesDir(dir string) *Builder {
	b.cfg.StagesDir = dir
	return b
}

// WithFormats restricts decoding to the given symbologies.
func (b *Builder) WithFormats(formats ...barcode.Format) *Builder {
	b.cfg.Barcode.Formats = formats
	return b
}

// WithTryHarder toggles the decoder's slower exhaustive search.
func (b *Builder) WithTryHarder(enabled bool) *Builder {
	b.cfg.Barcode.TryHarder = enabled
	return b
}

// WithDecoderName selects a built-in decoder.
func (b *Builder) WithDecoderName(name string) *Builder {
	b.cfg.DecoderName = name
	return b
}

// WithDecoder injects a decoder instance, overriding DecoderName.
func (b *Builder) WithDecoder(d barcode.Decoder) *Builder {
	b.decoder = d
	return b
}

// WithObserver sets the stage observer.
func (b *Builder) WithObserver(o Observer) *Builder {
	b.observer = o
	return b
}

// WithParallelWorkers sets the number of parallel workers for batch processing.
func (b *Builder) WithParallelWorkers(workers int) *Builder {
	if workers > 0 {
		b.cfg.Parallel.MaxWorkers = workers
	}
	return b
}

// WithProgressCallback sets the progress callback for batch processing.
func (b *Builder) WithProgressCallback(callback ProgressCallback) *Builder {
	b.cfg.Parallel.ProgressCallback = callback
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks the component configurations.
func (b *Builder) Validate() error {
	if err := b.cfg.Detector.Validate(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	if err := b.cfg.Rectify.Validate(); err != nil {
		return fmt.Errorf("rectify: %w", err)
	}
	if b.decoder == nil {
		if _, err := barcode.NewDecoder(b.cfg.DecoderName); err != nil {
			return err
		}
	}
	return nil
}

// Build validates the configuration and creates the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	rect, err := rectify.New(b.cfg.Rectify)
	if err != nil {
		return nil, err
	}

	dec := b.decoder
	if dec == nil {
		if dec, err = barcode.NewDecoder(b.cfg.DecoderName); err != nil {
			return nil, err
		}
	}

	var observers MultiObserver
	if b.observer != nil {
		observers = append(observers, b.observer)
	}
	if b.cfg.StagesDir != "" {
		observers = append(observers, NewDirObserver(b.cfg.StagesDir, "stage"))
	}

	var obs Observer = NopObserver{}
	switch len(observers) {
	case 0:
	case 1:
		obs = observers[0]
	default:
		obs = observers
	}

	slog.Debug("Pipeline built",
		"min_area", b.cfg.Detector.MinArea,
		"interpolation", b.cfg.Rectify.Interpolation,
		"decoder", fmt.Sprintf("%T", dec))

	return &Pipeline{cfg: b.cfg, rectifier: rect, decoder: dec, observer: obs}, nil
}

// Pipeline wires detection, rectification and decoding together. It holds no
// per-image state and is safe for concurrent use when its decoder and
// observer are.
type Pipeline struct {
	cfg       Config
	rectifier *rectify.Rectifier
	decoder   barcode.Decoder
	observer  Observer
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// WithObserver returns a shallow copy of p reporting to o instead. Used to
// attach a per-request observer without rebuilding.
func (p *Pipeline) WithObserver(o Observer) *Pipeline {
	cp := *p
	if o == nil {
		o = NopObserver{}
	}
	cp.observer = o
	return &cp
}

// IsGeometryError reports whether err means no barcode could be localized,
// as opposed to an I/O or configuration failure.
func IsGeometryError(err error) bool {
	return errors.Is(err, detector.ErrNoBarcodeRegion) || errors.Is(err, rectify.ErrNoRotatedContour)
}
