package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{name: "zero size", input: 0, expected: 1024},
		{name: "small size gets minimum", input: 1, expected: 1024},
		{name: "exactly 1024", input: 1024, expected: 1024},
		{name: "just over 1024", input: 1025, expected: 2048},
		{name: "large size", input: 10000, expected: 10240},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sizeClass(tt.input))
		})
	}
}

func TestPool_GetPutReuse(t *testing.T) {
	p := &Pool[float32]{}
	buf := p.Get(1500)
	require.Len(t, buf, 1500)
	assert.Equal(t, 2048, cap(buf))
	buf[0] = 7
	p.Put(buf)

	again := p.GetZeroed(1500)
	require.Len(t, again, 1500)
	for _, v := range again {
		require.Zero(t, v)
	}
}

func TestPool_PutForeignSliceIgnored(t *testing.T) {
	p := &Pool[int32]{}
	assert.NotPanics(t, func() {
		p.Put(nil)
		p.Put(make([]int32, 10))
	})
	assert.Len(t, p.Get(10), 10)
}

func TestPool_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for range 50 {
				buf := Int32.GetZeroed(n*100 + 1)
				buf[0] = int32(n)
				Int32.Put(buf)
			}
		}(i)
	}
	wg.Wait()
}
