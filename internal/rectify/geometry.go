package rectify

import (
	"math"

	"github.com/MeKo-Tech/barscan/internal/utils"
)

// NormalizeAngle turns a raw enclosing-rectangle angle in [-90, 0) into the
// correction angle: below -45 a quarter turn is added, so the result lies in
// [-45, 0]. Exactly -45 is kept as is. The mapping is idempotent.
func NormalizeAngle(raw float64) float64 {
	if raw < -45 {
		return raw + 90
	}
	return raw
}

// Skew is the estimated orientation of the selected region.
type Skew struct {
	Rect     utils.RotatedRect // minimum-area rectangle, raw convention
	RawAngle float64
	Angle    float64 // rotation that makes the region upright
}

// EstimateSkew fits the minimum-area rectangle around pts and normalizes its
// angle.
func EstimateSkew(pts []utils.Point) Skew {
	r := utils.MinAreaRect(pts)
	return Skew{Rect: r, RawAngle: r.Angle, Angle: NormalizeAngle(r.Angle)}
}

// Affine is a 2×3 matrix [a b c; d e f] mapping (x, y) to
// (a x + b y + c, d x + e y + f).
type Affine [6]float64

// RotationMatrix returns the source-to-destination transform rotating by
// angle degrees about (cx, cy). Positive angles turn the content
// counter-clockwise on screen (y axis pointing down).
func RotationMatrix(cx, cy, angle float64) Affine {
	rad := angle * math.Pi / 180
	alpha, beta := math.Cos(rad), math.Sin(rad)
	return Affine{
		alpha, beta, (1-alpha)*cx - beta*cy,
		-beta, alpha, beta*cx + (1-alpha)*cy,
	}
}

// Apply maps a point.
func (m Affine) Apply(x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

// Invert returns the inverse transform. Singular matrices return the zero
// Affine.
func (m Affine) Invert() Affine {
	det := m[0]*m[4] - m[1]*m[3]
	if det == 0 {
		return Affine{}
	}
	a, b, d, e := m[4]/det, -m[1]/det, -m[3]/det, m[0]/det
	return Affine{
		a, b, -(a*m[2] + b*m[5]),
		d, e, -(d*m[2] + e*m[5]),
	}
}
