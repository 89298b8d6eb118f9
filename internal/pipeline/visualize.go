package pipeline

import (
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/barscan/internal/rectify"
	"github.com/MeKo-Tech/barscan/internal/utils"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	roiColor   = color.RGBA{R: 255, B: 255, A: 255}
	labelColor = color.RGBA{R: 255, G: 255, A: 255}
)

// RenderOverlay draws the detection results over img and returns an RGBA
// copy: the region polygon, the fitted rotated rectangle, the ROI box and
// every decoded symbol with its text. ROI-relative geometry is mapped back
// through the inverse de-skew rotation.
func RenderOverlay(img image.Image, res *Result) *image.RGBA {
	if img == nil {
		return nil
	}
	dst := utils.ToRGBA(img)
	if res == nil {
		return dst
	}

	if res.Region != nil && len(res.Region.Polygon) >= 2 {
		origin := img.Bounds().Min
		poly := make([]utils.Point, len(res.Region.Polygon))
		for i, p := range res.Region.Polygon {
			poly[i] = utils.Point{X: p.X - float64(origin.X), Y: p.Y - float64(origin.Y)}
		}
		utils.DrawPolygon(dst, poly, regionColor, overlayStroke)
	}
	if res.Skew == nil {
		return dst
	}
	utils.DrawPolygon(dst, res.Skew.Rect.Corners(), rotRectColor, 1)

	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	toOriginal := rectify.RotationMatrix(float64(w/2), float64(h/2), res.Skew.Angle).Invert()
	mapRect := func(r image.Rectangle) []utils.Point {
		corners := [4]image.Point{r.Min, {r.Max.X, r.Min.Y}, r.Max, {r.Min.X, r.Max.Y}}
		out := make([]utils.Point, len(corners))
		for i, c := range corners {
			x, y := toOriginal.Apply(float64(c.X), float64(c.Y))
			out[i] = utils.Point{X: x, Y: y}
		}
		return out
	}

	if res.ROI == nil {
		return dst
	}
	roi := res.ROI.Bounds.Image()
	utils.DrawPolygon(dst, mapRect(roi), roiColor, 1)

	for _, s := range res.Symbols {
		box := s.Location.Image().Add(roi.Min)
		poly := mapRect(box)
		utils.DrawPolygon(dst, poly, symbolColor, overlayStroke)
		drawLabel(dst, poly, s.Type+": "+s.Text)
	}
	return dst
}

// drawLabel writes text just above the topmost corner of poly.
func drawLabel(dst *image.RGBA, poly []utils.Point, text string) {
	top := poly[0]
	for _, p := range poly[1:] {
		if p.Y < top.Y {
			top = p
		}
	}
	x := int(math.Round(top.X))
	y := max(int(math.Round(top.Y))-4, basicfont.Face7x13.Ascent)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(labelColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
