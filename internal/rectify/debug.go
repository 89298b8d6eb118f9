package rectify

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/barscan/internal/utils"
)

func dumpSkewOverlayPNG(dir string, src *image.Gray, skew Skew) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	ts := time.Now().UnixNano()
	path := filepath.Join(dir, fmt.Sprintf("skew_overlay_%d.png", ts))
	canvas := utils.ToRGBA(src)
	utils.DrawPolygon(canvas, skew.Rect.Corners(), color.RGBA{255, 0, 0, 255}, 2)
	return writePNG(path, canvas)
}

func dumpComparePNG(dir string, rotated *image.Gray, roi *ROI) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	ts := time.Now().UnixNano()
	path := filepath.Join(dir, fmt.Sprintf("roi_compare_%d.png", ts))
	rb := rotated.Bounds()
	db := roi.Image.Bounds()
	gap := 10
	canvas := image.NewRGBA(image.Rect(0, 0, rb.Dx()+gap+db.Dx(), max(rb.Dy(), db.Dy())))
	for y := range rb.Dy() {
		for x := range rb.Dx() {
			canvas.Set(x, y, rotated.GrayAt(rb.Min.X+x, rb.Min.Y+y))
		}
	}
	xoff := rb.Dx() + gap
	for y := range db.Dy() {
		for x := range db.Dx() {
			canvas.Set(xoff+x, y, roi.Image.GrayAt(db.Min.X+x, db.Min.Y+y))
		}
	}
	utils.DrawRect(canvas, roi.Bounds, color.RGBA{0, 255, 0, 255}, 2)
	return writePNG(path, canvas)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path) //nolint:gosec // G304: path is constructed from timestamp in debug directory
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return png.Encode(f, img)
}
