package detector

import (
	"image"
	"math"
)

// AdaptiveThreshold binarizes src against the Gaussian-weighted mean of each
// pixel's blockSize×blockSize neighbourhood minus offset. Pixels strictly
// above max(mean-offset, 0) become 255, all others 0. The reference level is
// clamped to the intensity range, so flat zero-response areas of an edge map
// stay background.
func AdaptiveThreshold(src *image.Gray, blockSize int, offset float64) *image.Gray {
	src = atOrigin(src)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	kernel := GaussianKernel(blockSize, 0)
	mean := fromPlane(separable(src, kernel, kernel, borderReplicate), w, h)

	delta := int(math.Ceil(offset))
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		ref := mean.Pix[y*mean.Stride : y*mean.Stride+w]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x, v := range row {
			level := max(int(ref[x])-delta, 0)
			if int(v) > level {
				dst[x] = 255
			}
		}
	}
	return out
}

// OtsuThreshold picks the global level that maximizes the between-class
// variance of the intensity histogram.
func OtsuThreshold(src *image.Gray) uint8 {
	src = atOrigin(src)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	totalPixels := w * h
	if totalPixels == 0 {
		return 0
	}

	const bins = 256
	var histogram [bins]int
	for y := range h {
		for _, v := range src.Pix[y*src.Stride : y*src.Stride+w] {
			histogram[v]++
		}
	}

	var totalSum float64
	for i := range bins {
		totalSum += float64(i) * float64(histogram[i])
	}

	var maxVariance, sumB float64
	bestThreshold := 0
	wB := 0
	for t := range bins {
		wB += histogram[t]
		if wB == 0 {
			continue
		}
		wF := totalPixels - wB
		if wF == 0 {
			break
		}

		sumB += float64(t) * float64(histogram[t])
		meanB := sumB / float64(wB)
		meanF := (totalSum - sumB) / float64(wF)

		variance := float64(wB) * float64(wF) * (meanB - meanF) * (meanB - meanF)
		if variance > maxVariance {
			maxVariance = variance
			bestThreshold = t
		}
	}
	return uint8(bestThreshold)
}

// Threshold returns 255 where src > level and 0 elsewhere.
func Threshold(src *image.Gray, level uint8) *image.Gray {
	src = atOrigin(src)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x, v := range row {
			if v > level {
				dst[x] = 255
			}
		}
	}
	return out
}

// OtsuBinarize thresholds src at its Otsu level and returns the level used.
func OtsuBinarize(src *image.Gray) (*image.Gray, uint8) {
	level := OtsuThreshold(src)
	return Threshold(src, level), level
}
