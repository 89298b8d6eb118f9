package detector

import (
	"image"

	"github.com/MeKo-Tech/barscan/internal/mempool"
	"github.com/MeKo-Tech/barscan/internal/utils"
)

// Contour is a closed boundary of a foreground region. Straight runs keep
// only their end points.
type Contour []image.Point

// Points returns the contour as float points.
func (c Contour) Points() []utils.Point { return utils.PointsFromInts(c) }

// Area returns the shoelace area enclosed by the boundary pixel centres. A
// filled w×h rectangle has area (w-1)(h-1); lines and single pixels have 0.
func (c Contour) Area() float64 { return utils.PolygonArea(c.Points()) }

// Perimeter returns the closed arc length.
func (c Contour) Perimeter() float64 { return utils.ArcLength(c.Points(), true) }

// Bounds returns the smallest rectangle containing every boundary pixel.
func (c Contour) Bounds() image.Rectangle {
	if len(c) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: c[0], Max: c[0].Add(image.Pt(1, 1))}
	for _, p := range c[1:] {
		r = r.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}
	return r
}

// FindExternalContours returns the outer boundary of every foreground
// component of bin that is not enclosed by another component. Holes are not
// reported. Contours come out in raster order of their first pixel.
func FindExternalContours(bin *image.Gray) []Contour {
	bin = atOrigin(bin)
	w, h := bin.Bounds().Dx(), bin.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil
	}
	labels := mempool.Int32.GetZeroed(w * h)
	defer mempool.Int32.Put(labels)

	comps := connectedComponents(bin, labels)
	markOuterComponents(bin, labels, comps)

	var contours []Contour
	for _, st := range comps {
		if !st.outer {
			continue
		}
		boundary := traceBoundary(labels, w, h, st)
		contours = append(contours, compressChain(boundary))
	}
	return contours
}

// traceBoundary follows the outer boundary of one component clockwise with
// Moore-neighbour tracing. The walk starts at the component's first pixel in
// raster order, whose west neighbour is background, and ends when it is back
// at the start about to repeat its first move.
func traceBoundary(labels []int32, w, h int, st compStats) []image.Point {
	inside := func(p image.Point) bool {
		return p.X >= 0 && p.Y >= 0 && p.X < w && p.Y < h && labels[p.Y*w+p.X] == st.label
	}
	// next scans clockwise from the backtrack direction b and returns the
	// first foreground neighbour plus the backtrack direction seen from it.
	next := func(p image.Point, b int) (image.Point, int, bool) {
		for k := 1; k <= 8; k++ {
			d := (b + k) % 8
			q := p.Add(neighbors8[d])
			if inside(q) {
				prev := p.Add(neighbors8[(b+k-1)%8])
				return q, directionOf(prev.Sub(q)), true
			}
		}
		return p, b, false
	}

	const west = 4
	start := st.start
	contour := []image.Point{start}
	q, nb, ok := next(start, west)
	if !ok {
		return contour
	}
	first := q

	maxSteps := 4*st.count + 8
	for range maxSteps {
		p, b := q, nb
		q, nb, _ = next(p, b)
		if p == start && q == first {
			break
		}
		contour = append(contour, p)
	}
	return contour
}

func directionOf(d image.Point) int {
	for i, n := range neighbors8 {
		if n == d {
			return i
		}
	}
	return 0
}

// compressChain drops points whose incoming and outgoing chain steps share a
// direction, keeping only the corners of the boundary.
func compressChain(pts []image.Point) Contour {
	n := len(pts)
	if n <= 2 {
		return Contour(append([]image.Point(nil), pts...))
	}
	out := make(Contour, 0, n/2+2)
	for i, p := range pts {
		prev := pts[(i+n-1)%n]
		nxt := pts[(i+1)%n]
		if p.Sub(prev) != nxt.Sub(p) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return Contour(append([]image.Point(nil), pts...))
	}
	return out
}
