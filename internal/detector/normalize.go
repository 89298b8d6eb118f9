package detector

import (
	"image"

	"github.com/MeKo-Tech/barscan/internal/utils"
)

// Normalize converts img to luma grayscale and equalizes its histogram. The
// unequalized grayscale is returned as well since the de-skew stage rotates
// that raster rather than the equalized one.
func Normalize(img image.Image) (gray, equalized *image.Gray) {
	gray = utils.ToGray(img)
	return gray, EqualizeHist(gray)
}

// EqualizeHist spreads the intensity histogram over 0..255 with a LUT built
// from the cumulative distribution. The lowest occupied level maps to 0; a
// single-level image is returned unchanged.
func EqualizeHist(src *image.Gray) *image.Gray {
	src = atOrigin(src)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	total := w * h
	if total == 0 {
		return out
	}

	var hist [256]int
	for y := range h {
		for _, v := range src.Pix[y*src.Stride : y*src.Stride+w] {
			hist[v]++
		}
	}

	first := 0
	for hist[first] == 0 {
		first++
	}
	var lut [256]uint8
	if hist[first] == total {
		for i := range lut {
			lut[i] = uint8(first)
		}
	} else {
		scale := 255.0 / float64(total-hist[first])
		sum := 0
		for i := first + 1; i < 256; i++ {
			sum += hist[i]
			lut[i] = saturate(float64(sum) * scale)
		}
	}

	for y := range h {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x, v := range row {
			dst[x] = lut[v]
		}
	}
	return out
}

// atOrigin rebases sub-images so stage code can index Pix from (0,0).
func atOrigin(g *image.Gray) *image.Gray {
	if g.Bounds().Min == (image.Point{}) {
		return g
	}
	return utils.CloneGray(g)
}
