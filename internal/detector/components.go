package detector

import (
	"image"

	"github.com/MeKo-Tech/barscan/internal/mempool"
)

// compStats represents statistics for a connected component.
type compStats struct {
	label int32
	count int
	start image.Point // first pixel in raster order
	minX  int
	minY  int
	maxX  int
	maxY  int
	outer bool // touches the border or background reachable from outside
}

var (
	neighbors8 = [8]image.Point{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	neighbors4 = [4]image.Point{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}
)

// connectedComponents labels the 8-connected foreground (non-zero) regions
// of bin. labels must have w*h zeroed entries; component k gets label k+1.
func connectedComponents(bin *image.Gray, labels []int32) []compStats {
	w, h := bin.Bounds().Dx(), bin.Bounds().Dy()
	var comps []compStats
	queue := make([]int, 0, 256)

	for y := range h {
		for x := range w {
			idx := y*w + x
			if bin.Pix[y*bin.Stride+x] == 0 || labels[idx] != 0 {
				continue
			}
			label := int32(len(comps) + 1)
			st := compStats{label: label, start: image.Pt(x, y), minX: x, minY: y, maxX: x, maxY: y}
			labels[idx] = label
			queue = append(queue[:0], idx)
			for len(queue) > 0 {
				cur := queue[len(queue)-1]
				queue = queue[:len(queue)-1]
				cx, cy := cur%w, cur/w
				st.count++
				st.minX, st.maxX = min(st.minX, cx), max(st.maxX, cx)
				st.minY, st.maxY = min(st.minY, cy), max(st.maxY, cy)
				for _, d := range neighbors8 {
					nx, ny := cx+d.X, cy+d.Y
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					nidx := ny*w + nx
					if bin.Pix[ny*bin.Stride+nx] != 0 && labels[nidx] == 0 {
						labels[nidx] = label
						queue = append(queue, nidx)
					}
				}
			}
			comps = append(comps, st)
		}
	}
	return comps
}

// markOuterComponents flags components that are not nested inside another
// component's hole. The outside background is flood-filled from the image
// border with 4-connectivity (the dual of 8-connected foreground); any
// component touching it or the border is outer.
func markOuterComponents(bin *image.Gray, labels []int32, comps []compStats) {
	w, h := bin.Bounds().Dx(), bin.Bounds().Dy()
	outside := mempool.Int32.GetZeroed(w * h)
	defer mempool.Int32.Put(outside)

	var queue []int
	seed := func(x, y int) {
		idx := y*w + x
		if labels[idx] != 0 {
			comps[labels[idx]-1].outer = true
			return
		}
		if outside[idx] == 0 {
			outside[idx] = 1
			queue = append(queue, idx)
		}
	}
	for x := range w {
		seed(x, 0)
		seed(x, h-1)
	}
	for y := range h {
		seed(0, y)
		seed(w-1, y)
	}

	for len(queue) > 0 {
		cur := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		cx, cy := cur%w, cur/w
		for _, d := range neighbors4 {
			nx, ny := cx+d.X, cy+d.Y
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			seed(nx, ny)
		}
	}
}
