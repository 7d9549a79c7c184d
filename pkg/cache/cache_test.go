package cache

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/marmos91/dittoblk/pkg/bufpool"
	"github.com/marmos91/dittoblk/pkg/driver"
	"github.com/marmos91/dittoblk/pkg/driver/ramdisk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Config{SectorSize: 512})
	assert.Error(t, err)

	_, err = New(&testDevice{}, Config{})
	assert.Error(t, err)

	c, err := New(&testDevice{}, Config{SectorSize: 512})
	require.NoError(t, err)
	assert.Equal(t, uint64(DefaultMaxSize), c.MaxSize())
}

func TestWriteThenRead(t *testing.T) {
	h := newHarness(t)

	data := pattern(0xA1, 4)
	h.write(0, 4, data)
	assert.Equal(t, data, h.read(0, 4))

	h.requireLayout(span{0, 4, true})
	assert.Equal(t, 1, h.cache.DirtyCount())
	assert.Equal(t, uint64(4*testSectorSize), h.cache.Size())
	assert.Empty(t, h.ops(), "write-back cache must not touch the device")
}

func TestPartialWriteSplitsCleanBuffer(t *testing.T) {
	h := newHarness(t)

	h.write(0, 4, pattern(0xA1, 4))
	require.NoError(t, h.cache.Sync(h.ctx))
	h.requireLayout(span{0, 4, false})
	h.dev.disk.ResetOps()

	h.write(1, 2, pattern(0xB2, 2))
	h.requireLayout(span{0, 1, false}, span{1, 2, true}, span{3, 1, false})

	require.NoError(t, h.cache.Sync(h.ctx))
	assert.Equal(t, []ramdisk.Op{{Kind: ramdisk.OpWrite, Start: 1, Count: 2}}, h.ops())
	h.requireLayout(span{0, 1, false}, span{1, 2, false}, span{3, 1, false})
}

func TestReadFillsGapBetweenBuffers(t *testing.T) {
	h := newHarness(t)

	h.read(0, 4)
	h.read(8, 4)
	h.requireLayout(span{0, 4, false}, span{8, 4, false})
	h.dev.disk.ResetOps()

	got := h.read(2, 8)
	assert.Equal(t, deviceSectors(2, 8), got)
	assert.Equal(t, []ramdisk.Op{{Kind: ramdisk.OpRead, Start: 4, Count: 4}}, h.ops())

	// Twelve resident sectors exceed the eight-sector budget, so the least
	// recently used buffer, [0,4), was evicted after the read.
	h.requireLayout(span{4, 4, false}, span{8, 4, false})
}

func TestPruneEvictsOldestAndFlushesDirty(t *testing.T) {
	h := newHarness(t)

	h.write(0, 4, pattern(0xC3, 4))
	h.read(10, 3)
	h.dev.disk.ResetOps()
	h.read(20, 2)

	assert.Equal(t, []ramdisk.Op{
		{Kind: ramdisk.OpRead, Start: 20, Count: 2},
		{Kind: ramdisk.OpWrite, Start: 0, Count: 4},
	}, h.ops())
	h.requireLayout(span{10, 3, false}, span{20, 2, false})
	assert.Equal(t, pattern(0xC3, 4), h.dev.disk.Contents(0, 4))
}

func TestPruneOrderFollowsLastAccess(t *testing.T) {
	h := newHarness(t, withBudget(64))

	h.read(0, 2)
	h.read(10, 2)
	h.read(20, 2)
	h.read(0, 1) // refresh [0,2)

	h.cache.maxSize = 4 * testSectorSize
	require.NoError(t, h.cache.Prune(h.ctx))
	h.requireLayout(span{0, 2, false}, span{20, 2, false})
}

func TestPruneTiesGoToListOrder(t *testing.T) {
	h := newHarness(t, withBudget(64))
	h.cache.now = func() time.Time { return time.Unix(42, 0) }

	h.read(20, 2)
	h.read(0, 2)
	h.read(10, 2)

	h.cache.maxSize = 4 * testSectorSize
	require.NoError(t, h.cache.Prune(h.ctx))
	h.requireLayout(span{10, 2, false}, span{20, 2, false})
}

func TestPruneKeepsSoleBuffer(t *testing.T) {
	h := newHarness(t)

	h.write(0, 16, pattern(0xD4, 16))
	h.requireLayout(span{0, 16, true})
	assert.Greater(t, h.cache.Size(), h.cache.MaxSize())
	assert.Empty(t, h.ops())
}

func TestPruneStopsOnFlushFailure(t *testing.T) {
	h := newHarness(t, withBudget(64))
	boom := errors.New("seek error")

	h.write(0, 4, pattern(0xE5, 4))
	h.read(10, 4)
	h.dev.failWrite[0] = boom

	h.cache.maxSize = 4 * testSectorSize
	err := h.cache.Prune(h.ctx)
	require.ErrorIs(t, err, boom)
	h.requireLayout(span{0, 4, true}, span{10, 4, false})
}

func TestNonInterference(t *testing.T) {
	h := newHarness(t, withBudget(64))

	h.read(0, 8)
	h.write(3, 2, pattern(0xF6, 2))

	assert.Equal(t, deviceSectors(0, 3), h.read(0, 3))
	assert.Equal(t, deviceSectors(5, 3), h.read(5, 3))
	assert.Equal(t, pattern(0xF6, 2), h.read(3, 2))
	h.requireLayout(span{0, 3, false}, span{3, 2, true}, span{5, 3, false})
}

func TestOverwriteDirtyBufferInPlace(t *testing.T) {
	h := newHarness(t, withBudget(64))

	h.write(0, 8, pattern(0x11, 8))
	h.write(2, 2, pattern(0x22, 2))

	h.requireLayout(span{0, 8, true})
	want := append(append(pattern(0x11, 2), pattern(0x22, 2)...), pattern(0x11, 4)...)
	assert.Equal(t, want, h.read(0, 8))
}

func TestWriteSpanningBuffersAndGaps(t *testing.T) {
	h := newHarness(t, withBudget(64))

	h.read(2, 2)
	h.write(6, 2, pattern(0x33, 2))
	h.write(0, 10, pattern(0x44, 10))

	h.requireLayout(
		span{0, 2, true},
		span{2, 2, true},
		span{4, 2, true},
		span{6, 2, true},
		span{8, 2, true},
	)
	assert.Equal(t, pattern(0x44, 10), h.read(0, 10))
	assert.Equal(t, 1, h.dev.disk.CountOps(ramdisk.OpRead))
}

func TestSyncIsIdempotent(t *testing.T) {
	h := newHarness(t, withBudget(64))

	h.write(0, 2, pattern(0x55, 2))
	h.write(10, 2, pattern(0x66, 2))
	require.NoError(t, h.cache.Sync(h.ctx))
	assert.Equal(t, 2, h.dev.disk.CountOps(ramdisk.OpWrite))
	assert.Zero(t, h.cache.DirtyCount())

	require.NoError(t, h.cache.Sync(h.ctx))
	assert.Equal(t, 2, h.dev.disk.CountOps(ramdisk.OpWrite))
}

func TestSyncReadOnlyDeviceKeepsDirty(t *testing.T) {
	h := newHarness(t)

	h.write(0, 2, pattern(0x77, 2))
	h.dev.readOnly = true
	require.ErrorIs(t, h.cache.Sync(h.ctx), driver.ErrWriteProtected)
	assert.Zero(t, h.dev.disk.CountOps(ramdisk.OpWrite))
	assert.Equal(t, 1, h.cache.DirtyCount())

	h.dev.readOnly = false
	require.NoError(t, h.cache.Sync(h.ctx))
	assert.Zero(t, h.cache.DirtyCount())

	h.dev.readOnly = true
	require.NoError(t, h.cache.Sync(h.ctx), "nothing dirty")
}

func TestSyncContinuesPastFailures(t *testing.T) {
	h := newHarness(t, withBudget(64))
	first := errors.New("first failure")
	last := errors.New("last failure")

	h.write(0, 1, pattern(1, 1))
	h.write(5, 1, pattern(2, 1))
	h.write(9, 1, pattern(3, 1))
	h.dev.failWrite[0] = first
	h.dev.failWrite[9] = last

	err := h.cache.Sync(h.ctx)
	assert.ErrorIs(t, err, last)
	assert.NotErrorIs(t, err, first)
	h.requireLayout(span{0, 1, true}, span{5, 1, false}, span{9, 1, true})
	assert.Equal(t, pattern(2, 1), h.dev.disk.Contents(5, 1))
}

func TestInvalidate(t *testing.T) {
	h := newHarness(t, withBudget(64))

	h.write(0, 2, pattern(0x88, 2))
	h.read(10, 2)
	require.NoError(t, h.cache.Invalidate(h.ctx))

	h.requireLayout()
	assert.Zero(t, h.cache.Size())
	assert.Zero(t, h.cache.DirtyCount())
	assert.Equal(t, pattern(0x88, 2), h.dev.disk.Contents(0, 2))
}

func TestInvalidateDiscardsUnflushable(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("media error")

	h.write(0, 2, pattern(0x99, 2))
	h.dev.failWrite[0] = boom

	assert.ErrorIs(t, h.cache.Invalidate(h.ctx), boom)
	h.requireLayout()
	assert.Equal(t, deviceSectors(0, 2), h.read(0, 2))
}

func TestReadErrorPropagates(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("crc")
	h.dev.disk.FailReads(boom)

	out := make([]byte, testSectorSize)
	assert.ErrorIs(t, h.cache.Read(h.ctx, 0, 1, out), boom)
	h.requireLayout()
}

func TestRequestValidation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name         string
		start, count uint64
		buf          []byte
	}{
		{"ZeroCount", 0, 0, nil},
		{"Overflow", ^uint64(0), 2, make([]byte, 2*testSectorSize)},
		{"ShortBuffer", 0, 2, make([]byte, testSectorSize)},
		{"ByteLengthWraps", 0, 1 << 55, []byte{}},
		{"ByteLengthTooLarge", 0, math.MaxUint64 / 2, make([]byte, testSectorSize)},
	}
	require.NoError(t, h.cache.Add(0, 4, deviceSectors(0, 4)))
	h.dev.disk.ResetOps()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, h.cache.Read(h.ctx, tt.start, tt.count, tt.buf), ErrInvalidRange)
			assert.ErrorIs(t, h.cache.Write(h.ctx, tt.start, tt.count, tt.buf), ErrInvalidRange)
			assert.ErrorIs(t, h.cache.Add(tt.start, tt.count, tt.buf), ErrInvalidRange)
		})
	}
	assert.Empty(t, h.ops())
}

func TestFindAndQueryRange(t *testing.T) {
	h := newHarness(t, withBudget(64))
	require.NoError(t, h.cache.Add(4, 4, deviceSectors(4, 4)))
	require.NoError(t, h.cache.Add(12, 2, deviceSectors(12, 2)))

	tests := []struct {
		name         string
		start, count uint64
		found        bool
		bufStart     uint64
		first, n     uint64
	}{
		{"Before", 0, 4, false, 0, 0, 0},
		{"EndsInside", 2, 4, true, 4, 4, 2},
		{"StartsInside", 6, 4, true, 4, 6, 2},
		{"Inside", 5, 2, true, 4, 5, 2},
		{"Covers", 0, 20, true, 4, 4, 4},
		{"Between", 8, 4, false, 0, 0, 0},
		{"SecondBuffer", 9, 10, true, 12, 12, 2},
		{"After", 14, 10, false, 0, 0, 0},
		{"EndWraps", 6, math.MaxUint64, true, 4, 6, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ok := h.cache.Find(tt.start, tt.count)
			assert.Equal(t, tt.found, ok)
			if ok {
				assert.Equal(t, tt.bufStart, b.Start)
			}
			first, n := h.cache.QueryRange(tt.start, tt.count)
			assert.Equal(t, tt.n, n)
			if tt.n > 0 {
				assert.Equal(t, tt.first, first)
			}
		})
	}
}

func TestAdd(t *testing.T) {
	h := newHarness(t, withBudget(64))

	require.NoError(t, h.cache.Add(8, 2, pattern(1, 2)))
	require.NoError(t, h.cache.Add(0, 2, pattern(2, 2)))
	require.NoError(t, h.cache.Add(4, 2, pattern(3, 2)))
	assert.ErrorIs(t, h.cache.Add(5, 2, pattern(4, 2)), ErrOverlap)

	want := []BufferInfo{{Start: 0, Count: 2}, {Start: 4, Count: 2}, {Start: 8, Count: 2}}
	if diff := cmp.Diff(want, h.cache.Buffers(), ignoreAccess); diff != "" {
		t.Fatalf("layout (-want +got):\n%s", diff)
	}
	assert.Equal(t, pattern(3, 2), h.read(4, 2))
}

func TestAddAllocationFailureLeavesCacheUnchanged(t *testing.T) {
	h := newHarness(t, withAllocLimit(2))

	require.NoError(t, h.cache.Add(0, 2, pattern(1, 2)))
	err := h.cache.Add(4, 1, pattern(2, 1))
	assert.ErrorIs(t, err, bufpool.ErrExhausted)
	h.requireLayout(span{0, 2, false})
}

func TestReadReturnsDataWhenAllocationFails(t *testing.T) {
	h := newHarness(t, withAllocLimit(2))

	assert.Equal(t, deviceSectors(0, 4), h.read(0, 4))
	h.requireLayout()
}

func TestWriteThroughWhenAllocationFails(t *testing.T) {
	h := newHarness(t, withAllocLimit(1))

	h.write(0, 2, pattern(0xAB, 2))
	h.requireLayout()
	assert.Equal(t, pattern(0xAB, 2), h.dev.disk.Contents(0, 2))
}

func TestSplitFailureDirtiesWholeBuffer(t *testing.T) {
	h := newHarness(t, withAllocLimit(4))

	h.read(0, 4)
	h.write(1, 1, pattern(0xCD, 1))

	h.requireLayout(span{0, 4, true})
	want := append(append(deviceSectors(0, 1), pattern(0xCD, 1)...), deviceSectors(2, 2)...)
	assert.Equal(t, want, h.read(0, 4))
}

func TestSplit(t *testing.T) {
	h := newHarness(t, withBudget(64))
	require.NoError(t, h.cache.Add(0, 6, deviceSectors(0, 6)))

	assert.ErrorIs(t, h.cache.Split(0, 6, pattern(1, 6)), ErrWholeBuffer)
	assert.ErrorIs(t, h.cache.Split(4, 4, pattern(1, 4)), ErrInvalidRange)
	assert.ErrorIs(t, h.cache.Split(10, 1, pattern(1, 1)), ErrNotCached)

	require.NoError(t, h.cache.Split(0, 2, pattern(0xEE, 2)))
	h.requireLayout(span{0, 2, false}, span{2, 4, false})

	require.NoError(t, h.cache.Split(4, 2, pattern(0xFF, 2)))
	h.requireLayout(span{0, 2, false}, span{2, 2, false}, span{4, 2, false})

	want := append(append(pattern(0xEE, 2), deviceSectors(2, 2)...), pattern(0xFF, 2)...)
	assert.Equal(t, want, h.read(0, 6))
}

func TestSplitInheritsDirtyAndAccess(t *testing.T) {
	h := newHarness(t, withBudget(64))
	h.write(0, 6, pattern(0x10, 6))
	before := h.cache.Buffers()[0].LastAccess

	b := h.cache.buffers[0]
	_, err := h.cache.split(b, 2, 2, pattern(0x20, 2))
	require.NoError(t, err)

	h.requireLayout(span{0, 2, true}, span{2, 2, true}, span{4, 2, true})
	assert.Equal(t, 3, h.cache.DirtyCount())
	for _, info := range h.cache.Buffers() {
		assert.Equal(t, before, info.LastAccess)
	}
}

func TestSplitAllocationFailureLeavesCacheUnchanged(t *testing.T) {
	h := newHarness(t, withAllocLimit(6))
	require.NoError(t, h.cache.Add(0, 4, deviceSectors(0, 4)))

	err := h.cache.Split(1, 2, pattern(1, 2))
	assert.ErrorIs(t, err, bufpool.ErrExhausted)
	h.requireLayout(span{0, 4, false})
	assert.Equal(t, uint64(4*testSectorSize), h.cache.alloc.InUse())
}

func TestRemove(t *testing.T) {
	h := newHarness(t, withBudget(64))
	h.write(0, 2, pattern(1, 2))
	h.read(4, 2)

	assert.ErrorIs(t, h.cache.Remove(1), ErrNotCached)
	require.NoError(t, h.cache.Remove(0))
	h.requireLayout(span{4, 2, false})
	assert.Zero(t, h.cache.DirtyCount())
	assert.Equal(t, deviceSectors(0, 2), h.dev.disk.Contents(0, 2), "removed dirty data is discarded")
}

func TestAllocatorBalanced(t *testing.T) {
	h := newHarness(t, withBudget(64))
	h.write(0, 8, pattern(1, 8))
	h.write(2, 2, pattern(2, 2))
	h.read(10, 4)
	require.NoError(t, h.cache.Sync(h.ctx))
	h.write(11, 1, pattern(3, 1))

	assert.Equal(t, h.cache.Size(), h.cache.alloc.InUse())
	require.NoError(t, h.cache.Invalidate(context.Background()))
	assert.Zero(t, h.cache.alloc.InUse())
}
