package rectify

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/barscan/internal/detector"
)

// Rectifier straightens a detected region and crops it.
type Rectifier struct {
	cfg Config
}

// New validates cfg and creates a rectifier.
func New(cfg Config) (*Rectifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rectify config: %w", err)
	}
	return &Rectifier{cfg: cfg}, nil
}

// Config returns the active configuration.
func (r *Rectifier) Config() Config { return r.cfg }

// Deskewed is the output of the skew correction stage.
type Deskewed struct {
	Skew    Skew
	Rotated *image.Gray
}

// Deskew estimates the skew of contour and rotates the original grayscale
// raster upright.
func (r *Rectifier) Deskew(gray *image.Gray, contour detector.Contour) *Deskewed {
	skew := EstimateSkew(contour.Points())
	rotated := Rotate(gray, skew.Angle, r.cfg.Interpolation, r.cfg.BorderMode)
	slog.Debug("Skew corrected",
		"raw_angle", skew.RawAngle,
		"angle", skew.Angle,
		"rect_w", skew.Rect.Size.Width,
		"rect_h", skew.Rect.Size.Height)

	if r.cfg.DebugDir != "" {
		if err := dumpSkewOverlayPNG(r.cfg.DebugDir, gray, skew); err != nil {
			slog.Warn("Failed to write skew overlay", "dir", r.cfg.DebugDir, "error", err)
		}
	}
	return &Deskewed{Skew: skew, Rotated: rotated}
}

// ExtractROI crops the region of interest out of the upright raster.
func (r *Rectifier) ExtractROI(rotated *image.Gray) (*ROI, error) {
	roi, err := ExtractROI(rotated, r.cfg)
	if err != nil {
		return nil, err
	}
	if r.cfg.DebugDir != "" {
		if err := dumpComparePNG(r.cfg.DebugDir, rotated, roi); err != nil {
			slog.Warn("Failed to write ROI compare", "dir", r.cfg.DebugDir, "error", err)
		}
	}
	return roi, nil
}

// Apply runs Deskew then ExtractROI.
func (r *Rectifier) Apply(gray *image.Gray, contour detector.Contour) (*Deskewed, *ROI, error) {
	d := r.Deskew(gray, contour)
	roi, err := r.ExtractROI(d.Rotated)
	return d, roi, err
}
