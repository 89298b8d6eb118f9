package pipeline

import (
	"image"

	"github.com/MeKo-Tech/barscan/internal/detector"
	"github.com/MeKo-Tech/barscan/internal/rectify"
	"github.com/MeKo-Tech/barscan/internal/utils"
)

// RegionResult describes the contour chosen as the barcode candidate, in
// input image coordinates.
type RegionResult struct {
	Bounds     utils.Rect    `json:"bounds" yaml:"bounds"`
	Area       float64       `json:"area" yaml:"area"`
	Polygon    []utils.Point `json:"polygon" yaml:"polygon"`
	Candidates int           `json:"candidates" yaml:"candidates"`
}

// SkewResult reports the fitted rectangle and the applied correction. Rect
// is in the working raster, which starts at the origin.
type SkewResult struct {
	RawAngle float64           `json:"raw_angle" yaml:"raw_angle"`
	Angle    float64           `json:"angle" yaml:"angle"`
	Rect     utils.RotatedRect `json:"rect" yaml:"rect"`
}

// ROIResult locates the crop inside the rotated raster.
type ROIResult struct {
	Bounds    utils.Rect `json:"bounds" yaml:"bounds"`
	OtsuLevel uint8      `json:"otsu_level" yaml:"otsu_level"`
}

// SymbolResult is one decoded symbol. Location and Points are relative to the
// ROI.
type SymbolResult struct {
	Type     string        `json:"type" yaml:"type"`
	Text     string        `json:"text" yaml:"text"`
	Payload  []byte        `json:"payload" yaml:"payload"`
	Location utils.Rect    `json:"location" yaml:"location"`
	Points   []utils.Point `json:"points,omitempty" yaml:"points,omitempty"`
}

// StageTiming is the wall time spent in one stage.
type StageTiming struct {
	Stage      string `json:"stage" yaml:"stage"`
	DurationNs int64  `json:"duration_ns" yaml:"duration_ns"`
}

// Result is the per-image output of the pipeline.
type Result struct {
	Source  string         `json:"source,omitempty" yaml:"source,omitempty"`
	Width   int            `json:"width" yaml:"width"`
	Height  int            `json:"height" yaml:"height"`
	Region  *RegionResult  `json:"region,omitempty" yaml:"region,omitempty"`
	Skew    *SkewResult    `json:"skew,omitempty" yaml:"skew,omitempty"`
	ROI     *ROIResult     `json:"roi,omitempty" yaml:"roi,omitempty"`
	Symbols []SymbolResult `json:"symbols" yaml:"symbols"`
	Timings []StageTiming  `json:"timings" yaml:"timings"`
	TotalNs int64          `json:"total_ns" yaml:"total_ns"`
	Error   string         `json:"error,omitempty" yaml:"error,omitempty"`

	// Artifacts holds the rasters of the run; never serialized.
	Artifacts *Artifacts `json:"-" yaml:"-"`
}

// Artifacts are the intermediate rasters and geometry of one run.
type Artifacts struct {
	Detection *detector.Detection
	Deskewed  *rectify.Deskewed
	ROI       *rectify.ROI
}

// ROIImage returns the cropped raster, or nil when the run stopped earlier.
func (a *Artifacts) ROIImage() *image.Gray {
	if a == nil || a.ROI == nil {
		return nil
	}
	return a.ROI.Image
}

// PDFResult groups the results of every image embedded in a PDF.
type PDFResult struct {
	Source string          `json:"source" yaml:"source"`
	Pages  []PDFPageResult `json:"pages" yaml:"pages"`
}

// PDFPageResult holds the results for the images of one page.
type PDFPageResult struct {
	Page   int       `json:"page" yaml:"page"`
	Images []*Result `json:"images" yaml:"images"`
}
