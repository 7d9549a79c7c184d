package bufpool

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolSizeClasses(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantCap int
	}{
		{"Zero", 0, DefaultSmallSize},
		{"OneSector", 512, DefaultSmallSize},
		{"FloppyTrack", 18 * 512, DefaultSmallSize},
		{"SmallBoundary", DefaultSmallSize, DefaultSmallSize},
		{"JustOverSmall", DefaultSmallSize + 1, DefaultMediumSize},
		{"MediumBoundary", DefaultMediumSize, DefaultMediumSize},
		{"Large", DefaultMediumSize + 1, DefaultLargeSize},
		{"Oversized", DefaultLargeSize + 1, DefaultLargeSize + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := Get(tt.size)
			defer Put(buf)

			assert.Len(t, buf, tt.size)
			assert.Equal(t, tt.wantCap, cap(buf))
		})
	}
}

func TestPoolPutIgnoresForeignSlices(t *testing.T) {
	p := NewPool(nil)
	p.Put(nil)
	p.Put(make([]byte, 10))

	buf := p.Get(10)
	assert.Equal(t, DefaultSmallSize, cap(buf))
}

func TestCustomPool(t *testing.T) {
	p := NewPool(&Config{SmallSize: 512, MediumSize: 4096})

	assert.Equal(t, 512, cap(p.Get(100)))
	assert.Equal(t, 4096, cap(p.Get(1000)))
	assert.Equal(t, DefaultLargeSize, cap(p.Get(5000)))
}

func TestAllocatorLimit(t *testing.T) {
	a := NewAllocator(4*512, nil)

	p1, err := a.Alloc(2 * 512)
	require.NoError(t, err)
	p2, err := a.Alloc(2 * 512)
	require.NoError(t, err)
	assert.Equal(t, uint64(4*512), a.InUse())

	_, err = a.Alloc(512)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExhausted))
	assert.Equal(t, uint64(1), a.Failures())
	assert.Equal(t, uint64(4*512), a.InUse(), "failed alloc must not change accounting")

	a.Free(p1)
	assert.Equal(t, uint64(2*512), a.InUse())

	p3, err := a.Alloc(512)
	require.NoError(t, err)
	assert.Len(t, p3, 512)

	a.Free(p2)
	a.Free(p3)
	assert.Zero(t, a.InUse())
}

func TestAllocatorUnlimited(t *testing.T) {
	a := NewAllocator(0, NewPool(nil))
	buf, err := a.Alloc(3 << 20)
	require.NoError(t, err)
	assert.Len(t, buf, 3<<20)
	assert.Zero(t, a.Limit())
	a.Free(buf)
	assert.Zero(t, a.InUse())
}

func TestAllocatorNegative(t *testing.T) {
	a := NewAllocator(0, nil)
	_, err := a.Alloc(-1)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrExhausted))
}

func TestAllocatorConcurrent(t *testing.T) {
	const workers = 8
	const perWorker = 200
	a := NewAllocator(workers*512, nil)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				buf, err := a.Alloc(512)
				if err != nil {
					continue
				}
				buf[0] = byte(j)
				a.Free(buf)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, a.InUse())
	assert.LessOrEqual(t, a.InUse(), a.Limit())
}

func BenchmarkAllocatorSector(b *testing.B) {
	a := NewAllocator(0, nil)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf, _ := a.Alloc(512)
		a.Free(buf)
	}
}
