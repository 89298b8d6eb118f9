package rectify

import (
	"image"
	"math"

	"github.com/MeKo-Tech/barscan/internal/utils"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Rotate turns src by angle degrees about its centre (w/2, h/2 in integer
// pixels) and returns a raster of the same size. Samples that fall outside
// src follow border; resampling follows interp.
func Rotate(src *image.Gray, angle float64, interp Interpolation, border BorderMode) *image.Gray {
	src = utils.CloneGray(src)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if angle == 0 || w == 0 || h == 0 {
		return src
	}

	m := RotationMatrix(float64(w/2), float64(h/2), angle)
	pad := borderPad(m.Invert(), w, h)
	padded := padGray(src, pad, border)

	// x/image/draw samples at pixel centres, so shift both frames by half a
	// pixel and undo the padding offset on the source side.
	off := float64(pad) + 0.5
	s2d := f64.Aff3{
		m[0], m[1], m[2] - (m[0]+m[1])*off + 0.5,
		m[3], m[4], m[5] - (m[3]+m[4])*off + 0.5,
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	kernelFor(interp).Transform(dst, s2d, padded, padded.Bounds(), draw.Src, nil)

	out := image.NewGray(dst.Bounds())
	for y := range h {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		line := out.Pix[y*out.Stride : y*out.Stride+w]
		for x := range line {
			line[x] = row[x*4]
		}
	}
	return out
}

func kernelFor(interp Interpolation) draw.Transformer {
	switch interp {
	case InterpolationLinear:
		return draw.BiLinear
	case InterpolationNearest:
		return draw.NearestNeighbor
	default:
		return draw.CatmullRom
	}
}

// borderPad returns how far the inverse-mapped destination corners reach
// outside the source, plus room for the widest kernel support.
func borderPad(inv Affine, w, h int) int {
	maxX, maxY := float64(w-1), float64(h-1)
	var over float64
	for _, c := range [4][2]float64{{0, 0}, {maxX, 0}, {0, maxY}, {maxX, maxY}} {
		sx, sy := inv.Apply(c[0], c[1])
		over = math.Max(over, math.Max(math.Max(-sx, -sy), math.Max(sx-maxX, sy-maxY)))
	}
	return int(math.Ceil(over)) + 3
}

// padGray surrounds src with pad pixels, replicated from the edge or black.
func padGray(src *image.Gray, pad int, border BorderMode) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w+2*pad, h+2*pad))
	for y := range out.Bounds().Dy() {
		sy := y - pad
		if sy < 0 || sy >= h {
			if border == BorderConstant {
				continue
			}
			sy = min(max(sy, 0), h-1)
		}
		srcRow := src.Pix[sy*src.Stride : sy*src.Stride+w]
		dstRow := out.Pix[y*out.Stride : y*out.Stride+w+2*pad]
		copy(dstRow[pad:pad+w], srcRow)
		if border == BorderConstant {
			continue
		}
		for x := range pad {
			dstRow[x] = srcRow[0]
			dstRow[pad+w+x] = srcRow[w-1]
		}
	}
	return out
}
