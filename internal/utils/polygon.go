package utils

import (
	"cmp"
	"math"
	"slices"
)

// Size is a float width/height pair.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// RotatedRect is the minimum-area rectangle enclosing a point set.
//
// Angle follows the classic enclosing-rectangle convention: it is the angle in
// degrees, within [-90, 0), between the x axis and the side reported as Width.
// An axis-aligned rectangle therefore reports -90 with Width and Height
// swapped.
type RotatedRect struct {
	Center Point   `json:"center" yaml:"center"`
	Size   Size    `json:"size" yaml:"size"`
	Angle  float64 `json:"angle" yaml:"angle"`
}

// Area returns Width*Height.
func (r RotatedRect) Area() float64 { return r.Size.Width * r.Size.Height }

// Corners returns the four corners of the rectangle in drawing order.
func (r RotatedRect) Corners() []Point {
	rad := r.Angle * math.Pi / 180
	c, s := math.Cos(rad)*0.5, math.Sin(rad)*0.5
	w, h := r.Size.Width, r.Size.Height
	p0 := Point{X: r.Center.X - s*h - c*w, Y: r.Center.Y + c*h - s*w}
	p1 := Point{X: r.Center.X + s*h - c*w, Y: r.Center.Y - c*h - s*w}
	return []Point{
		p0,
		p1,
		{X: 2*r.Center.X - p0.X, Y: 2*r.Center.Y - p0.Y},
		{X: 2*r.Center.X - p1.X, Y: 2*r.Center.Y - p1.Y},
	}
}

// SimplifyClosedPolygon runs Douglas–Peucker on a closed contour. The ring is
// split at the vertex farthest from the first one so both halves are
// simplified as open chains sharing their end points.
func SimplifyClosedPolygon(pts []Point, epsilon float64) []Point {
	n := len(pts)
	if n <= 3 || epsilon <= 0 {
		return append([]Point(nil), pts...)
	}
	far, farDist := 0, -1.0
	for i := 1; i < n; i++ {
		if d := math.Hypot(pts[i].X-pts[0].X, pts[i].Y-pts[0].Y); d > farDist {
			far, farDist = i, d
		}
	}
	ring := append(append([]Point(nil), pts...), pts[0])
	keep := make([]bool, len(ring))
	keep[0], keep[far], keep[n] = true, true, true
	dpSimplify(ring, 0, far, epsilon, keep)
	dpSimplify(ring, far, n, epsilon, keep)
	keep[n] = false
	return collectKept(ring, keep)
}

func collectKept(pts []Point, keep []bool) []Point {
	out := make([]Point, 0, len(pts))
	for i, k := range keep {
		if k {
			out = append(out, pts[i])
		}
	}
	return out
}

func dpSimplify(pts []Point, start, end int, eps float64, keep []bool) {
	if end <= start+1 {
		return
	}
	maxDist := -1.0
	index := -1
	a := pts[start]
	b := pts[end]
	for i := start + 1; i < end; i++ {
		d := perpendicularDistance(pts[i], a, b)
		if d > maxDist {
			maxDist = d
			index = i
		}
	}
	if maxDist > eps {
		keep[index] = true
		dpSimplify(pts, start, index, eps, keep)
		dpSimplify(pts, index, end, eps, keep)
	}
}

func perpendicularDistance(p, a, b Point) float64 {
	vx, vy := b.X-a.X, b.Y-a.Y
	if vx == 0 && vy == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	return math.Abs(vx*(p.Y-a.Y)-vy*(p.X-a.X)) / math.Hypot(vx, vy)
}

// PolygonArea returns the absolute shoelace area of a closed polygon.
func PolygonArea(pts []Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	var sum float64
	prev := pts[len(pts)-1]
	for _, p := range pts {
		sum += prev.X*p.Y - p.X*prev.Y
		prev = p
	}
	return math.Abs(sum) / 2
}

// ArcLength returns the perimeter of a polyline, including the closing
// segment when closed is true.
func ArcLength(pts []Point, closed bool) float64 {
	if len(pts) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(pts); i++ {
		total += math.Hypot(pts[i].X-pts[i-1].X, pts[i].Y-pts[i-1].Y)
	}
	if closed {
		last := pts[len(pts)-1]
		total += math.Hypot(pts[0].X-last.X, pts[0].Y-last.Y)
	}
	return total
}

// ConvexHull computes the convex hull of a set of points using the
// monotone chain algorithm. Returns the hull in CCW order without
// duplicating the first point at the end.
func ConvexHull(pts []Point) []Point {
	if len(pts) <= 1 {
		return append([]Point(nil), pts...)
	}
	p := append([]Point(nil), pts...)
	slices.SortFunc(p, func(a, b Point) int {
		if c := cmp.Compare(a.X, b.X); c != 0 {
			return c
		}
		return cmp.Compare(a.Y, b.Y)
	})
	p = slices.Compact(p)
	if len(p) <= 2 {
		return p
	}
	lower := buildHalfHull(p, 1)
	upper := buildHalfHull(p, -1)
	hull := make([]Point, 0, len(lower)+len(upper)-2)
	hull = append(hull, lower[:len(lower)-1]...)
	hull = append(hull, upper[:len(upper)-1]...)
	return hull
}

// buildHalfHull walks p forwards (dir 1, lower hull) or backwards (dir -1,
// upper hull).
func buildHalfHull(p []Point, dir int) []Point {
	half := make([]Point, 0, len(p))
	for i := range p {
		pt := p[i]
		if dir < 0 {
			pt = p[len(p)-1-i]
		}
		for len(half) >= 2 && cross(half[len(half)-2], half[len(half)-1], pt) <= 0 {
			half = half[:len(half)-1]
		}
		half = append(half, pt)
	}
	return half
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// MinAreaRect computes the minimum-area enclosing rectangle of pts with
// rotating calipers over the convex hull.
func MinAreaRect(pts []Point) RotatedRect {
	hull := ConvexHull(pts)
	switch len(hull) {
	case 0:
		return RotatedRect{Angle: -90}
	case 1:
		return RotatedRect{Center: hull[0], Angle: -90}
	}

	bestArea := math.Inf(1)
	var best RotatedRect
	for i := range hull {
		a := hull[i]
		b := hull[(i+1)%len(hull)]
		dx, dy := b.X-a.X, b.Y-a.Y
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		ux, uy := dx/l, dy/l
		vx, vy := -uy, ux
		minS, maxS := math.Inf(1), math.Inf(-1)
		minT, maxT := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			s := p.X*ux + p.Y*uy
			t := p.X*vx + p.Y*vy
			minS, maxS = math.Min(minS, s), math.Max(maxS, s)
			minT, maxT = math.Min(minT, t), math.Max(maxT, t)
		}
		area := (maxS - minS) * (maxT - minT)
		if area < bestArea-1e-9 {
			bestArea = area
			ms, mt := (minS+maxS)/2, (minT+maxT)/2
			best = orientRect(
				Point{X: ux*ms + vx*mt, Y: uy*ms + vy*mt},
				maxS-minS, maxT-minT,
				math.Atan2(uy, ux)*180/math.Pi,
			)
		}
	}
	return best
}

// orientRect maps an edge direction angle onto the [-90, 0) convention,
// swapping the sides when the reference edge changes.
func orientRect(center Point, width, height, angle float64) RotatedRect {
	for angle >= 90 {
		angle -= 180
	}
	for angle < -90 {
		angle += 180
	}
	if angle >= 0 {
		angle -= 90
		width, height = height, width
	}
	return RotatedRect{Center: center, Size: Size{Width: width, Height: height}, Angle: angle}
}
