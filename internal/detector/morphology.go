package detector

import "image"

// Dilate runs iterations passes of a k×k max filter. Samples outside the
// image are ignored, so borders neither grow nor erode foreground.
func Dilate(src *image.Gray, k, iterations int) *image.Gray {
	return repeatRank(src, k, iterations, true)
}

// Erode runs iterations passes of a k×k min filter.
func Erode(src *image.Gray, k, iterations int) *image.Gray {
	return repeatRank(src, k, iterations, false)
}

// Close dilates iterations times, then erodes iterations times, with a k×k
// rectangle. This matches cv::morphologyEx(MORPH_CLOSE) with an iteration
// count, not iterations repeated closings.
func Close(src *image.Gray, k, iterations int) *image.Gray {
	return Erode(Dilate(src, k, iterations), k, iterations)
}

// repeatRank always returns a new raster at the origin; k <= 1 or no
// iterations copies src.
func repeatRank(src *image.Gray, k, iterations int, dilate bool) *image.Gray {
	src = atOrigin(src)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	result := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		copy(result.Pix[y*result.Stride:y*result.Stride+w], src.Pix[y*src.Stride:])
	}
	if k <= 1 {
		return result
	}
	for range iterations {
		result = rankFilter(result, k, dilate)
	}
	return result
}

// rankFilter applies a k×k max (dilate) or min (erode) filter. The
// rectangular element is separable, so rows and columns are processed in two
// passes. The anchor sits at k/2.
func rankFilter(src *image.Gray, k int, dilate bool) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	lo, hi := -(k / 2), k-1-k/2
	pick := func(acc, v uint8) uint8 {
		if dilate {
			return max(acc, v)
		}
		return min(acc, v)
	}
	var init uint8
	if !dilate {
		init = 255
	}

	tmp := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		dst := tmp.Pix[y*tmp.Stride : y*tmp.Stride+w]
		for x := range w {
			acc := init
			for i := max(x+lo, 0); i <= min(x+hi, w-1); i++ {
				acc = pick(acc, row[i])
			}
			dst[x] = acc
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x := range w {
			acc := init
			for j := max(y+lo, 0); j <= min(y+hi, h-1); j++ {
				acc = pick(acc, tmp.Pix[j*tmp.Stride+x])
			}
			dst[x] = acc
		}
	}
	return out
}
