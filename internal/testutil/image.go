package testutil

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/require"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	SmallSize  = ImageSize{320, 240}
	MediumSize = ImageSize{640, 480}
	LargeSize  = ImageSize{800, 600}

	// LabelSize is the barcode label used by the end-to-end scenes.
	LabelSize = ImageSize{400, 200}
)

// Bar geometry of the synthetic labels. Bits are drawn MSB first: a 1 is a
// wide bar, a 0 a narrow one, separated by fixed gaps.
const (
	NarrowBar = 6
	WideBar   = 12
	BarGap    = 6
	// labelMarginX/Y keep a white quiet zone between bars and label edge.
	labelMarginX = 40
	labelMarginY = 30
)

// BlankImage returns a uniform grayscale raster.
func BlankImage(size ImageSize, level uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size.Width, size.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{Y: level}), image.Point{}, draw.Src)
	return img
}

// RectangleImage returns a black canvas with a white filled rectangle.
func RectangleImage(size ImageSize, rect image.Rectangle) *image.Gray {
	img := BlankImage(size, 0)
	draw.Draw(img, rect, image.NewUniform(color.Gray{Y: 255}), image.Point{}, draw.Src)
	return img
}

// RotatedRectangleImage draws a white w×h rectangle rotated counter-clockwise
// by angle degrees in the centre of a black canvas.
func RotatedRectangleImage(size ImageSize, w, h int, angle float64) *image.NRGBA {
	rect := imaging.New(w, h, color.White)
	return EmbedRotated(rect, angle, size)
}

// BarcodeLabel draws a white LabelSize label whose bars encode payload.
func BarcodeLabel(payload string) *image.NRGBA {
	label := imaging.New(LabelSize.Width, LabelSize.Height, color.White)
	bits := payloadBits([]byte(payload))

	total := -BarGap
	for _, b := range bits {
		total += barWidth(b) + BarGap
	}
	x := (LabelSize.Width - total) / 2
	bar := image.NewUniform(color.Black)
	for _, b := range bits {
		r := image.Rect(x, labelMarginY, x+barWidth(b), LabelSize.Height-labelMarginY)
		draw.Draw(label, r, bar, image.Point{}, draw.Src)
		x += barWidth(b) + BarGap
	}
	return label
}

// EmbedRotated rotates img counter-clockwise by angle degrees and pastes it
// in the centre of a black canvas.
func EmbedRotated(img image.Image, angle float64, size ImageSize) *image.NRGBA {
	rotated := imaging.Rotate(img, angle, color.Black)
	canvas := imaging.New(size.Width, size.Height, color.Black)
	return imaging.PasteCenter(canvas, rotated)
}

func payloadBits(payload []byte) []bool {
	bits := make([]bool, 0, len(payload)*8)
	for _, c := range payload {
		for i := 7; i >= 0; i-- {
			bits = append(bits, c&(1<<i) != 0)
		}
	}
	return bits
}

func barWidth(bit bool) int {
	if bit {
		return WideBar
	}
	return NarrowBar
}

// ReadBarPattern decodes the bar pattern drawn by BarcodeLabel from the
// middle row of roi. Dark runs touching either end of the row are cropping
// residue and are skipped.
func ReadBarPattern(roi *image.Gray) ([]byte, image.Rectangle, bool) {
	b := roi.Bounds()
	if b.Empty() {
		return nil, image.Rectangle{}, false
	}
	y := b.Min.Y + b.Dy()/2
	const level = 128

	type run struct{ start, end int }
	var runs []run
	inRun := false
	for x := b.Min.X; x < b.Max.X; x++ {
		dark := roi.GrayAt(x, y).Y < level
		switch {
		case dark && !inRun:
			runs = append(runs, run{start: x})
			inRun = true
		case !dark && inRun:
			runs[len(runs)-1].end = x
			inRun = false
		}
	}
	if inRun {
		runs = runs[:len(runs)-1]
	}
	if len(runs) > 0 && runs[0].start == b.Min.X {
		runs = runs[1:]
	}
	if len(runs) == 0 || len(runs)%8 != 0 {
		return nil, image.Rectangle{}, false
	}

	payload := make([]byte, len(runs)/8)
	for i, r := range runs {
		if r.end-r.start >= (NarrowBar+WideBar)/2 {
			payload[i/8] |= 1 << (7 - i%8)
		}
	}
	loc := image.Rect(runs[0].start, b.Min.Y, runs[len(runs)-1].end, b.Max.Y)
	return payload, loc, true
}

// StubDecoder recognizes BarcodeLabel patterns.
type StubDecoder struct{}

// Decode implements barcode.Decoder.
func (StubDecoder) Decode(_ context.Context, roi *image.Gray, _ barcode.Options) ([]barcode.Symbol, error) {
	payload, loc, ok := ReadBarPattern(roi)
	if !ok {
		return nil, nil
	}
	return []barcode.Symbol{{Type: "SYNTHETIC", Payload: payload, Location: loc}}, nil
}

// SaveImage saves an image to the specified path as PNG.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()
	require.NoError(t, WritePNG(img, path), "Failed to save %s", path)
}

// WritePNG encodes img as PNG at path, creating parent directories.
func WritePNG(img image.Image, path string) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// WriteScene writes the standard rotated-label scene to dir and returns its
// path.
func WriteScene(t *testing.T, dir, name, payload string, angle float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	SaveImage(t, EmbedRotated(BarcodeLabel(payload), angle, LargeSize), path)
	return path
}

// Code128Scene renders payload as a real Code 128 symbol on a white label in
// the middle of a black LargeSize canvas, so the default zxing decoder can
// read it back.
func Code128Scene(t *testing.T, payload string) *image.Gray {
	t.Helper()
	scene, err := NewCode128Scene(payload)
	require.NoError(t, err)
	return scene
}

// NewCode128Scene is Code128Scene for callers without a *testing.T.
func NewCode128Scene(payload string) (*image.Gray, error) {
	matrix, err := oned.NewCode128Writer().Encode(payload, gozxing.BarcodeFormat_CODE_128, 400, 120, nil)
	if err != nil {
		return nil, err
	}
	scene := image.NewGray(image.Rect(0, 0, LargeSize.Width, LargeSize.Height))
	label := image.Rect(160, 180, 640, 420)
	draw.Draw(scene, label, image.NewUniform(color.Gray{Y: 255}), image.Point{}, draw.Src)
	code := matrix.Bounds().Add(image.Pt(200, 240).Sub(matrix.Bounds().Min))
	draw.Draw(scene, code, matrix, matrix.Bounds().Min, draw.Src)
	return scene, nil
}

// WritePDF imports the given image files into a new PDF at path, one image
// per page.
func WritePDF(t *testing.T, path string, imageFiles ...string) string {
	t.Helper()
	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, api.ImportImagesFile(imageFiles, path, nil, nil), "Failed to create PDF %s", path)
	return path
}
