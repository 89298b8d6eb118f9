package detector

import (
	"image"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// randomMask builds a deterministic binary mask from a seed.
func randomMask(w, h int, seed int64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	state := uint64(seed)*6364136223846793005 + 1442695040888963407
	for i := range img.Pix {
		state = state*6364136223846793005 + 1442695040888963407
		if state>>61 == 0 {
			img.Pix[i] = 255
		}
	}
	return img
}

// TestClosing_Extensive verifies closing never removes foreground.
func TestClosing_Extensive(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("closing is extensive and stays binary", prop.ForAll(
		func(width, height, kernelSize int, seed int64) bool {
			img := randomMask(width, height, seed)
			out := Close(img, kernelSize, 1)
			for i, v := range out.Pix {
				if v != 0 && v != 255 {
					return false
				}
				if img.Pix[i] == 255 && v != 255 {
					return false
				}
			}
			return true
		},
		gen.IntRange(5, 40),
		gen.IntRange(5, 40),
		gen.OneConstOf(1, 3, 5, 9),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

// TestDilate_Grows verifies dilation never shrinks the foreground count.
func TestDilate_Grows(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("dilation count >= input count >= erosion count", prop.ForAll(
		func(width, height int, seed int64) bool {
			img := randomMask(width, height, seed)
			count := func(g *image.Gray) int {
				n := 0
				for _, v := range g.Pix {
					if v != 0 {
						n++
					}
				}
				return n
			}
			d := Dilate(img, 3, 1)
			e := Erode(img, 3, 1)
			return count(d) >= count(img) && count(img) >= count(e)
		},
		gen.IntRange(5, 40),
		gen.IntRange(5, 40),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
