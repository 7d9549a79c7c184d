package cache

import (
	"bytes"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDetectsCorruption(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(c *Cache)
		reason  string
	}{
		{"SizeCounter", func(c *Cache) { c.size += testSectorSize }, "size counter"},
		{"DirtyCounter", func(c *Cache) { c.dirty++ }, "dirty counter"},
		{"Overlap", func(c *Cache) {
			c.buffers[0].count++
			c.buffers[0].data = make([]byte, 3*testSectorSize)
			c.size += testSectorSize
		}, "overlaps"},
		{"Order", func(c *Cache) { c.buffers[0], c.buffers[1] = c.buffers[1], c.buffers[0] }, ">= next start"},
		{"Payload", func(c *Cache) { c.buffers[1].data = c.buffers[1].data[:1] }, "holds 1 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, withBudget(64))
			h.cache.verify = false
			require.NoError(t, h.cache.Add(0, 2, pattern(1, 2)))
			require.NoError(t, h.cache.Add(2, 2, pattern(2, 2)))
			require.NoError(t, h.cache.Check())

			tt.corrupt(h.cache)

			err := h.cache.Check()
			var ie *InvariantError
			require.True(t, errors.As(err, &ie), "got %v", err)
			assert.Contains(t, ie.Reason, tt.reason)
			assert.Equal(t, "fd0", ie.Disk)
			assert.Contains(t, ie.Layout, "fd0 cache:")
		})
	}
}

func TestVerifyModePanics(t *testing.T) {
	h := newHarness(t, withBudget(64))
	require.NoError(t, h.cache.Add(0, 2, pattern(1, 2)))
	h.cache.dirty = 5

	defer func() {
		r := recover()
		require.NotNil(t, r, "verify mode must panic on a corrupted cache")
		ie, ok := r.(*InvariantError)
		require.True(t, ok, "panic value %T", r)
		assert.Equal(t, "add", ie.Op)
		assert.Contains(t, ie.Error(), "after add")
	}()

	_ = h.cache.Add(4, 2, pattern(2, 2))
}

// TestRandomWorkloadMatchesModel drives the cache with random reads, writes,
// syncs and invalidations in verify mode and compares every read with a flat
// model of the disk.
func TestRandomWorkloadMatchesModel(t *testing.T) {
	for _, seed := range []int64{1, 7, 42, 1234} {
		h := newHarness(t, withBudget(12))
		rng := rand.New(rand.NewSource(seed))
		model := deviceSectors(0, testSectors)

		for step := 0; step < 400; step++ {
			start := uint64(rng.Intn(testSectors))
			count := uint64(1 + rng.Intn(int(min(10, testSectors-start))))
			from, to := start*testSectorSize, (start+count)*testSectorSize

			switch op := rng.Intn(10); {
			case op < 4:
				got := h.read(start, count)
				if !bytes.Equal(model[from:to], got) {
					t.Fatalf("seed %d step %d: read [%d,%d) diverged from model", seed, step, start, start+count)
				}
			case op < 8:
				data := pattern(byte(rng.Intn(256)), count)
				h.write(start, count, data)
				copy(model[from:to], data)
			case op < 9:
				require.NoError(t, h.cache.Sync(h.ctx))
				assert.Zero(t, h.cache.DirtyCount())
			default:
				require.NoError(t, h.cache.Invalidate(h.ctx))
			}
			require.NoError(t, h.cache.Check())
			if h.cache.Len() > 1 {
				assert.LessOrEqual(t, h.cache.Size(), h.cache.MaxSize()+10*testSectorSize)
			}
		}

		require.NoError(t, h.cache.Sync(h.ctx))
		assert.Equal(t, model, h.dev.disk.Contents(0, testSectors), "seed %d", seed)
	}
}

type recordingMetrics struct {
	mu        sync.Mutex
	hits      uint64
	misses    uint64
	evictions int
	splits    int
	allocFail int
	flushed   uint64
	flushErrs int
	lastSize  uint64
}

func (m *recordingMetrics) RecordHit(_ string, n uint64) {
	m.mu.Lock()
	m.hits += n
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordMiss(_ string, n uint64) {
	m.mu.Lock()
	m.misses += n
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordEviction(string, bool) {
	m.mu.Lock()
	m.evictions++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordSplit(string) {
	m.mu.Lock()
	m.splits++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordAllocFailure(string) {
	m.mu.Lock()
	m.allocFail++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordFlush(_ string, n uint64, err error) {
	m.mu.Lock()
	if err != nil {
		m.flushErrs++
	} else {
		m.flushed += n
	}
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordState(_ string, bytes uint64, _, _ int) {
	m.mu.Lock()
	m.lastSize = bytes
	m.mu.Unlock()
}

func TestMetricsReported(t *testing.T) {
	m := &recordingMetrics{}
	h := newHarness(t, withMetrics(m))

	h.read(0, 4)
	h.read(2, 4)
	h.write(1, 1, pattern(9, 1))
	require.NoError(t, h.cache.Sync(h.ctx))
	h.read(20, 4)

	assert.Equal(t, uint64(2), m.hits)
	assert.Equal(t, uint64(10), m.misses)
	assert.Equal(t, 1, m.splits)
	assert.Equal(t, uint64(1), m.flushed)
	assert.GreaterOrEqual(t, m.evictions, 1)
	assert.Equal(t, h.cache.Size(), m.lastSize)
}
