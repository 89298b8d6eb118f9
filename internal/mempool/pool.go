package mempool

import "sync"

// Pool hands out reusable scratch slices bucketed by size class. The raster
// stages allocate a float plane per separable pass and a label plane per
// contour search; pooling keeps batch runs from churning the GC.
type Pool[T any] struct {
	classes sync.Map // size class (int) -> *sync.Pool
}

// Shared pools used by the detection stages.
var (
	Float32 = &Pool[float32]{}
	Int32   = &Pool[int32]{}
)

// sizeClass rounds n up to the next multiple of 1024.
func sizeClass(n int) int {
	const step = 1024
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func (p *Pool[T]) pool(cls int) *sync.Pool {
	if v, ok := p.classes.Load(cls); ok {
		return v.(*sync.Pool)
	}
	v, _ := p.classes.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]T, cls)
		return &buf
	}})
	return v.(*sync.Pool)
}

// Get returns a slice of length n. Contents are unspecified.
func (p *Pool[T]) Get(n int) []T {
	cls := sizeClass(n)
	bp, _ := p.pool(cls).Get().(*[]T)
	if bp == nil || cap(*bp) < cls {
		buf := make([]T, cls)
		return buf[:n]
	}
	return (*bp)[:n]
}

// GetZeroed returns a slice of length n with every element reset.
func (p *Pool[T]) GetZeroed(n int) []T {
	buf := p.Get(n)
	clear(buf)
	return buf
}

// Put returns a slice obtained from Get. Nil is ignored.
func (p *Pool[T]) Put(buf []T) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	if cls != cap(buf) {
		return
	}
	buf = buf[:cap(buf)]
	p.pool(cls).Put(&buf)
}
