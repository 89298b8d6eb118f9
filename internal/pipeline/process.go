package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/barscan/internal/detector"
	"github.com/MeKo-Tech/barscan/internal/rectify"
	"github.com/MeKo-Tech/barscan/internal/utils"
)

var (
	contourColor  = color.RGBA{R: 255, G: 200, A: 255}
	regionColor   = color.RGBA{G: 255, A: 255}
	rotRectColor  = color.RGBA{R: 255, A: 255}
	symbolColor   = color.RGBA{B: 255, G: 128, A: 255}
	overlayStroke = 2
)

// ProcessFile loads path and runs the pipeline on it.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*Result, error) {
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return &Result{Source: path, Error: err.Error()}, err
	}
	res, err := p.Process(ctx, img)
	res.Source = path
	return res, err
}

// Process runs every stage on img. The returned result is never nil: on
// failure it carries whatever the completed stages produced, and err
// identifies the failing stage. Zero decoded symbols is a success.
func (p *Pipeline) Process(ctx context.Context, img image.Image) (*Result, error) {
	start := time.Now()
	b := img.Bounds()
	res := &Result{Width: b.Dx(), Height: b.Dy(), Symbols: []SymbolResult{}, Artifacts: &Artifacts{}}

	err := p.run(ctx, img, res)
	res.TotalNs = time.Since(start).Nanoseconds()
	imagesProcessed.WithLabelValues(outcomeOf(err)).Inc()

	if err != nil {
		res.Error = err.Error()
		slog.Debug("Pipeline failed", "error", err, "total_ns", res.TotalNs)
		return res, err
	}
	slog.Debug("Pipeline completed",
		"angle", res.Skew.Angle,
		"symbols", len(res.Symbols),
		"total_ns", res.TotalNs)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, img image.Image, res *Result) error {
	cfg := p.cfg.Detector
	det := &detector.Detection{}
	res.Artifacts.Detection = det

	err := p.stage(ctx, res, StageNormalize, func() (image.Image, error) {
		det.Gray, det.Equalized = detector.Normalize(img)
		return det.Equalized, nil
	})
	if err != nil {
		return err
	}

	if err := p.stage(ctx, res, StageBlur, func() (image.Image, error) {
		det.Blurred = detector.GaussianBlur(det.Equalized, cfg.BlurKernel, cfg.BlurSigma)
		return det.Blurred, nil
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, res, StageGradient, func() (image.Image, error) {
		det.Gradient = detector.GradientMagnitude(det.Blurred)
		return det.Gradient, nil
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, res, StageThreshold, func() (image.Image, error) {
		det.Binary = detector.AdaptiveThreshold(det.Gradient, cfg.AdaptiveBlockSize, cfg.AdaptiveOffset)
		return det.Binary, nil
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, res, StageMorphology, func() (image.Image, error) {
		det.Closed = detector.Close(det.Binary, cfg.MorphKernel, cfg.MorphIterations)
		return det.Closed, nil
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, res, StageContours, func() (image.Image, error) {
		det.Contours = detector.FindExternalContours(det.Closed)
		region, err := detector.SelectRegion(det.Contours, cfg.MinArea, cfg.ApproxEpsilonRatio)
		det.Region = region
		return renderContours(det), err
	}); err != nil {
		return fmt.Errorf("contour selection: %w", err)
	}
	res.Region = regionResult(det.Region, img.Bounds().Min)

	if err := p.stage(ctx, res, StageDeskew, func() (image.Image, error) {
		res.Artifacts.Deskewed = p.rectifier.Deskew(det.Gray, det.Region.Contour)
		return res.Artifacts.Deskewed.Rotated, nil
	}); err != nil {
		return err
	}
	skew := res.Artifacts.Deskewed.Skew
	res.Skew = &SkewResult{RawAngle: skew.RawAngle, Angle: skew.Angle, Rect: skew.Rect}
	skewAngle.Observe(skew.Angle)

	if err := p.stage(ctx, res, StageROI, func() (image.Image, error) {
		roi, err := p.rectifier.ExtractROI(res.Artifacts.Deskewed.Rotated)
		if err != nil {
			return nil, err
		}
		res.Artifacts.ROI = roi
		return roi.Image, nil
	}); err != nil {
		return fmt.Errorf("roi extraction: %w", err)
	}
	roi := res.Artifacts.ROI
	res.ROI = &ROIResult{Bounds: utils.RectFrom(roi.Bounds), OtsuLevel: roi.Level}

	return p.stage(ctx, res, StageDecode, func() (image.Image, error) {
		symbols, err := p.decoder.Decode(ctx, roi.Image, p.cfg.Barcode)
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		for _, s := range symbols {
			res.Symbols = append(res.Symbols, symbolResult(s))
			symbolsDecoded.WithLabelValues(s.Type).Inc()
		}
		return renderSymbols(roi.Image, res.Symbols), nil
	})
}

// stage checks for cancellation, runs fn, records its duration and hands
// the produced raster to the observer. The observer also sees the raster of
// a failed stage when fn produced one.
func (p *Pipeline) stage(ctx context.Context, res *Result, s Stage, fn func() (image.Image, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t0 := time.Now()
	out, err := fn()
	d := time.Since(t0)

	res.Timings = append(res.Timings, StageTiming{Stage: s.String(), DurationNs: d.Nanoseconds()})
	stageDuration.WithLabelValues(s.String()).Observe(d.Seconds())
	if out != nil {
		p.observer.Observe(s, s.Title(), out)
	}
	return err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, detector.ErrNoBarcodeRegion):
		return "no_region"
	case errors.Is(err, rectify.ErrNoRotatedContour):
		return "no_roi"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// regionResult maps the region from the rebased working raster back into
// input coordinates.
func regionResult(r *detector.Region, origin image.Point) *RegionResult {
	poly := make([]utils.Point, len(r.Approx))
	for i, pt := range r.Approx {
		pt = pt.Add(origin)
		poly[i] = utils.Point{X: float64(pt.X), Y: float64(pt.Y)}
	}
	return &RegionResult{
		Bounds:     utils.RectFrom(r.Bounds.Add(origin)),
		Area:       r.Area,
		Polygon:    poly,
		Candidates: r.Candidates,
	}
}

// renderContours draws every external contour and highlights the selected
// region on the grayscale input.
func renderContours(det *detector.Detection) image.Image {
	canvas := utils.ToRGBA(det.Gray)
	for _, c := range det.Contours {
		utils.DrawPolygon(canvas, c.Points(), contourColor, 1)
	}
	if det.Region != nil {
		utils.DrawPolygon(canvas, utils.PointsFromInts(det.Region.Approx), regionColor, overlayStroke)
	}
	return canvas
}

// renderSymbols outlines decoded symbols on the ROI.
func renderSymbols(roi *image.Gray, symbols []SymbolResult) image.Image {
	canvas := utils.ToRGBA(roi)
	for _, s := range symbols {
		utils.DrawRect(canvas, s.Location.Image(), symbolColor, overlayStroke)
	}
	return canvas
}
