package detector

import (
	"image"
	"math"

	"github.com/MeKo-Tech/barscan/internal/mempool"
)

type borderMode int

const (
	borderReflect101 borderMode = iota // gfedcb|abcdefgh|gfedcba
	borderReplicate                    // aaaaaa|abcdefgh|hhhhhhh
)

// borderIndex maps an out-of-range coordinate back into [0, n).
func borderIndex(i, n int, mode borderMode) int {
	if i >= 0 && i < n {
		return i
	}
	if n == 1 {
		return 0
	}
	if mode == borderReplicate {
		if i < 0 {
			return 0
		}
		return n - 1
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		} else {
			i = 2*n - 2 - i
		}
	}
	return i
}

// GaussianKernel returns the normalized 1-D Gaussian of odd size k. With
// sigma <= 0 the sigma is derived from k, and sizes up to 7 use the fixed
// binomial tables.
func GaussianKernel(k int, sigma float64) []float32 {
	if sigma <= 0 {
		switch k {
		case 1:
			return []float32{1}
		case 3:
			return []float32{0.25, 0.5, 0.25}
		case 5:
			return []float32{0.0625, 0.25, 0.375, 0.25, 0.0625}
		case 7:
			return []float32{0.03125, 0.109375, 0.21875, 0.28125, 0.21875, 0.109375, 0.03125}
		}
		sigma = 0.3*(float64(k-1)*0.5-1) + 0.8
	}
	weights := make([]float64, k)
	var sum float64
	for i := range weights {
		x := float64(i) - float64(k-1)/2
		weights[i] = math.Exp(-x * x / (2 * sigma * sigma))
		sum += weights[i]
	}
	out := make([]float32, k)
	for i, v := range weights {
		out[i] = float32(v / sum)
	}
	return out
}

// separable convolves src with kx along rows and ky along columns and returns
// the float plane.
func separable(src *image.Gray, kx, ky []float32, mode borderMode) []float32 {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	tmp := mempool.Float32.Get(w * h)
	defer mempool.Float32.Put(tmp)

	rx := len(kx) / 2
	for y := range h {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		line := tmp[y*w : y*w+w]
		for x := range w {
			var s float32
			for i, k := range kx {
				s += k * float32(row[borderIndex(x+i-rx, w, mode)])
			}
			line[x] = s
		}
	}

	out := make([]float32, w*h)
	ry := len(ky) / 2
	for y := range h {
		dst := out[y*w : y*w+w]
		for i, k := range ky {
			yy := borderIndex(y+i-ry, h, mode)
			srcLine := tmp[yy*w : yy*w+w]
			for x := range dst {
				dst[x] += k * srcLine[x]
			}
		}
	}
	return out
}

// GaussianBlur smooths src with a k×k Gaussian (reflect-101 border).
func GaussianBlur(src *image.Gray, k int, sigma float64) *image.Gray {
	src = atOrigin(src)
	kernel := GaussianKernel(k, sigma)
	return fromPlane(separable(src, kernel, kernel, borderReflect101), src.Bounds().Dx(), src.Bounds().Dy())
}

var (
	sobelDeriv  = []float32{-1, 0, 1}
	sobelSmooth = []float32{1, 2, 1}
)

// GradientMagnitude computes 3×3 Sobel derivatives in float precision and
// returns sqrt(gx²+gy²) saturated to 8 bits.
func GradientMagnitude(src *image.Gray) *image.Gray {
	src = atOrigin(src)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	gx := separable(src, sobelDeriv, sobelSmooth, borderReflect101)
	gy := separable(src, sobelSmooth, sobelDeriv, borderReflect101)
	for i := range gx {
		gx[i] = float32(math.Hypot(float64(gx[i]), float64(gy[i])))
	}
	return fromPlane(gx, w, h)
}

func fromPlane(plane []float32, w, h int) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x, v := range plane[y*w : y*w+w] {
			dst[x] = saturate(float64(v))
		}
	}
	return out
}

func saturate(v float64) uint8 {
	v = math.Round(v)
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
