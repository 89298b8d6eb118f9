package rectify

import "fmt"

// Interpolation selects the resampling kernel used for the de-skew rotation.
type Interpolation string

const (
	InterpolationCubic   Interpolation = "cubic"
	InterpolationLinear  Interpolation = "linear"
	InterpolationNearest Interpolation = "nearest"
)

// BorderMode selects how samples outside the source raster are produced.
type BorderMode string

const (
	// BorderReplicate repeats the outermost row or column.
	BorderReplicate BorderMode = "replicate"
	// BorderConstant fills with black.
	BorderConstant BorderMode = "constant"
)

// Config holds configuration for the de-skew and ROI extraction stages.
type Config struct {
	Interpolation Interpolation // resampling kernel for the rotation
	BorderMode    BorderMode    // out-of-bounds sampling
	BlurKernel    int           // Gaussian size used before the Otsu re-binarization
	BlurSigma     float64       // 0 derives sigma from BlurKernel
	Padding       int           // extra pixels added around the ROI box before clamping
	// Debug dumping
	DebugDir string // if non-empty, writes skew overlay and ROI compare PNGs here
}

// DefaultConfig returns the reference settings: cubic interpolation, edge
// replication, 5×5 re-smoothing and no padding.
func DefaultConfig() Config {
	return Config{
		Interpolation: InterpolationCubic,
		BorderMode:    BorderReplicate,
		BlurKernel:    5,
		BlurSigma:     0,
		Padding:       0,
		DebugDir:      "",
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Interpolation {
	case InterpolationCubic, InterpolationLinear, InterpolationNearest:
	default:
		return fmt.Errorf("unknown interpolation %q", c.Interpolation)
	}
	switch c.BorderMode {
	case BorderReplicate, BorderConstant:
	default:
		return fmt.Errorf("unknown border mode %q", c.BorderMode)
	}
	if c.BlurKernel < 1 || c.BlurKernel%2 == 0 {
		return fmt.Errorf("blur kernel must be a positive odd number, got %d", c.BlurKernel)
	}
	if c.BlurSigma < 0 {
		return fmt.Errorf("blur sigma must be >= 0, got %v", c.BlurSigma)
	}
	if c.Padding < 0 {
		return fmt.Errorf("padding must be >= 0, got %d", c.Padding)
	}
	return nil
}
