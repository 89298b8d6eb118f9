package detector

import (
	"errors"
	"fmt"
	"image"
	"math"
	"slices"

	"github.com/MeKo-Tech/barscan/internal/utils"
)

// ErrNoBarcodeRegion is matched by errors.Is for every *NoBarcodeRegionError.
var ErrNoBarcodeRegion = errors.New("no barcode region found")

// NoBarcodeRegionError reports that no external contour of the consolidated
// mask exceeded the minimum area.
type NoBarcodeRegionError struct {
	Candidates  int
	LargestArea float64
	MinArea     float64
}

func (e *NoBarcodeRegionError) Error() string {
	if e.Candidates == 0 {
		return fmt.Sprintf("%v: no contours (min area %.0f)", ErrNoBarcodeRegion, e.MinArea)
	}
	return fmt.Sprintf("%v: %d contours, largest area %.1f <= min area %.0f",
		ErrNoBarcodeRegion, e.Candidates, e.LargestArea, e.MinArea)
}

func (e *NoBarcodeRegionError) Is(target error) bool { return target == ErrNoBarcodeRegion }

// Region is the contour chosen as the barcode candidate.
type Region struct {
	Contour Contour
	Area    float64
	Bounds  image.Rectangle
	// Approx is the Douglas–Peucker outline, kept for overlays only.
	Approx []image.Point
	// Candidates is the number of external contours considered.
	Candidates int
}

// SelectRegion ranks contours by area, largest first, and returns the first
// one whose area exceeds minArea.
func SelectRegion(contours []Contour, minArea, approxRatio float64) (*Region, error) {
	type ranked struct {
		c    Contour
		area float64
	}
	list := make([]ranked, len(contours))
	for i, c := range contours {
		list[i] = ranked{c: c, area: c.Area()}
	}
	slices.SortStableFunc(list, func(a, b ranked) int {
		switch {
		case a.area > b.area:
			return -1
		case a.area < b.area:
			return 1
		}
		return 0
	})

	for _, r := range list {
		if r.area > minArea {
			return &Region{
				Contour:    r.c,
				Area:       r.area,
				Bounds:     r.c.Bounds(),
				Approx:     ApproxPolygon(r.c, approxRatio),
				Candidates: len(contours),
			}, nil
		}
	}

	err := &NoBarcodeRegionError{Candidates: len(contours), MinArea: minArea}
	if len(list) > 0 {
		err.LargestArea = list[0].area
	}
	return nil, err
}

// ApproxPolygon simplifies a closed contour with tolerance ratio×perimeter.
func ApproxPolygon(c Contour, ratio float64) []image.Point {
	pts := c.Points()
	simplified := utils.SimplifyClosedPolygon(pts, ratio*utils.ArcLength(pts, true))
	out := make([]image.Point, len(simplified))
	for i, p := range simplified {
		out[i] = image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
	}
	return out
}

// Detection carries every intermediate raster of the detection stages along
// with the selected region.
type Detection struct {
	Gray      *image.Gray
	Equalized *image.Gray
	Blurred   *image.Gray
	Gradient  *image.Gray
	Binary    *image.Gray
	Closed    *image.Gray
	Contours  []Contour
	Region    *Region
}

// Detect runs contrast normalization through contour selection on img. The
// returned Detection holds every raster produced so far even when selection
// fails.
func Detect(img image.Image, cfg Config) (*Detection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}
	d := &Detection{}
	d.Gray, d.Equalized = Normalize(img)
	d.Blurred = GaussianBlur(d.Equalized, cfg.BlurKernel, cfg.BlurSigma)
	d.Gradient = GradientMagnitude(d.Blurred)
	d.Binary = AdaptiveThreshold(d.Gradient, cfg.AdaptiveBlockSize, cfg.AdaptiveOffset)
	d.Closed = Close(d.Binary, cfg.MorphKernel, cfg.MorphIterations)
	d.Contours = FindExternalContours(d.Closed)

	region, err := SelectRegion(d.Contours, cfg.MinArea, cfg.ApproxEpsilonRatio)
	if err != nil {
		return d, err
	}
	d.Region = region
	return d, nil
}
