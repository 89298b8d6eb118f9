package detector

import (
	"errors"
	"fmt"
)

// Config holds the numeric parameters of the detection stages. The defaults
// are tuned for photographs around 640–1280 px wide; scale them with the
// input resolution.
type Config struct {
	// BlurKernel is the odd Gaussian kernel size used for noise suppression
	// and again for the ROI re-binarization.
	BlurKernel int
	// BlurSigma of 0 derives sigma from BlurKernel.
	BlurSigma float64

	// AdaptiveBlockSize is the odd neighbourhood size of the local threshold.
	AdaptiveBlockSize int
	// AdaptiveOffset is subtracted from the local Gaussian mean.
	AdaptiveOffset float64

	// MorphKernel is the side of the rectangular closing element.
	MorphKernel int
	// MorphIterations counts dilations, then as many erosions, as in
	// OpenCV's closing; it does not repeat whole closings.
	MorphIterations int

	// MinArea is the contour area a candidate must exceed, in square pixels.
	MinArea float64
	// ApproxEpsilonRatio scales the contour perimeter into the polygon
	// approximation tolerance.
	ApproxEpsilonRatio float64
}

// DefaultConfig returns the reference parameters.
func DefaultConfig() Config {
	return Config{
		BlurKernel:         5,
		BlurSigma:          0,
		AdaptiveBlockSize:  11,
		AdaptiveOffset:     2,
		MorphKernel:        9,
		MorphIterations:    1,
		MinArea:            1000,
		ApproxEpsilonRatio: 0.02,
	}
}

// Validate reports the first invalid parameter.
func (c Config) Validate() error {
	if c.BlurKernel < 1 || c.BlurKernel%2 == 0 {
		return fmt.Errorf("blur kernel must be a positive odd number, got %d", c.BlurKernel)
	}
	if c.BlurSigma < 0 {
		return fmt.Errorf("blur sigma must be >= 0, got %v", c.BlurSigma)
	}
	if c.AdaptiveBlockSize < 3 || c.AdaptiveBlockSize%2 == 0 {
		return fmt.Errorf("adaptive block size must be an odd number >= 3, got %d", c.AdaptiveBlockSize)
	}
	if c.MorphKernel < 1 {
		return fmt.Errorf("morph kernel must be >= 1, got %d", c.MorphKernel)
	}
	if c.MorphIterations < 0 {
		return fmt.Errorf("morph iterations must be >= 0, got %d", c.MorphIterations)
	}
	if c.MinArea < 0 {
		return fmt.Errorf("min area must be >= 0, got %v", c.MinArea)
	}
	if c.ApproxEpsilonRatio < 0 || c.ApproxEpsilonRatio >= 1 {
		return errors.New("approx epsilon ratio must be within [0, 1)")
	}
	return nil
}
