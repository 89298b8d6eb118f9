package rectify

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/barscan/internal/detector"
	"github.com/MeKo-Tech/barscan/internal/utils"
)

// ErrNoRotatedContour is matched by errors.Is for every *NoRotatedContourError.
var ErrNoRotatedContour = errors.New("no contour found after rotation")

// NoRotatedContourError reports that the re-binarized upright raster had no
// foreground contour to crop.
type NoRotatedContourError struct {
	Level uint8 // Otsu level used for the re-binarization
}

func (e *NoRotatedContourError) Error() string {
	return fmt.Sprintf("%v (otsu level %d)", ErrNoRotatedContour, e.Level)
}

func (e *NoRotatedContourError) Is(target error) bool { return target == ErrNoRotatedContour }

// ROI is the cropped region of interest and the data used to find it.
type ROI struct {
	Image   *image.Gray
	Bounds  image.Rectangle // within the rotated raster
	Contour detector.Contour // in the rotated raster's coordinates
	Level   uint8
	Blurred *image.Gray // rebased at the origin
	Binary  *image.Gray // rebased at the origin
}

// ExtractROI re-smooths the upright raster, binarizes it with Otsu's level,
// takes the largest external contour and crops its bounding box (plus
// padding) clamped to the raster. Bounds and Contour use the coordinates of
// rotated, which need not start at the origin.
func ExtractROI(rotated *image.Gray, cfg Config) (*ROI, error) {
	blurred := detector.GaussianBlur(rotated, cfg.BlurKernel, cfg.BlurSigma)
	binary, level := detector.OtsuBinarize(blurred)
	contours := detector.FindExternalContours(binary)
	if len(contours) == 0 {
		return nil, &NoRotatedContourError{Level: level}
	}

	largest, largestArea := contours[0], contours[0].Area()
	for _, c := range contours[1:] {
		if a := c.Area(); a > largestArea {
			largest, largestArea = c, a
		}
	}

	// The stage rasters are rebased at the origin; shift back into rotated.
	origin := rotated.Bounds().Min
	if origin != (image.Point{}) {
		shifted := make(detector.Contour, len(largest))
		for i, p := range largest {
			shifted[i] = p.Add(origin)
		}
		largest = shifted
	}

	bounds := utils.ClampRect(largest.Bounds().Inset(-cfg.Padding), rotated.Bounds())
	return &ROI{
		Image:   utils.CropGray(rotated, bounds),
		Bounds:  bounds,
		Contour: largest,
		Level:   level,
		Blurred: blurred,
		Binary:  binary,
	}, nil
}
