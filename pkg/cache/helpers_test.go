package cache

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/marmos91/dittoblk/pkg/bufpool"
	"github.com/marmos91/dittoblk/pkg/driver"
	"github.com/marmos91/dittoblk/pkg/driver/ramdisk"
	"github.com/stretchr/testify/require"
)

const (
	testSectorSize = 512
	testSectors    = 64
	testBudget     = 8 * testSectorSize
)

// testDevice adapts a RAM disk to the Device interface and can fail writes
// to chosen sectors.
type testDevice struct {
	disk      *ramdisk.Disk
	readOnly  bool
	failWrite map[uint64]error
}

func (d *testDevice) ReadDirect(ctx context.Context, start, count uint64, p []byte) error {
	return d.disk.ReadSectors(ctx, start, count, p)
}

func (d *testDevice) WriteDirect(ctx context.Context, start, count uint64, p []byte) error {
	if err, ok := d.failWrite[start]; ok {
		return err
	}
	return d.disk.WriteSectors(ctx, start, count, p)
}

func (d *testDevice) ReadOnly() bool {
	return d.readOnly
}

// fakeClock advances one second per call so every touch is strictly newer.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.now = f.now.Add(time.Second)
	return f.now
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	dev   *testDevice
	cache *Cache
	clock *fakeClock
}

type harnessOption func(*Config)

func withBudget(sectors uint64) harnessOption {
	return func(c *Config) { c.MaxSize = sectors * testSectorSize }
}

func withAllocLimit(sectors uint64) harnessOption {
	return func(c *Config) { c.Allocator = bufpool.NewAllocator(sectors*testSectorSize, nil) }
}

func withMetrics(m Metrics) harnessOption {
	return func(c *Config) { c.Metrics = m }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	rd, err := ramdisk.New(ramdisk.Options{Class: driver.ClassFloppy, SectorSize: testSectorSize, Sectors: testSectors})
	require.NoError(t, err)

	// Give every sector a recognizable pattern.
	ctx := context.Background()
	for s := uint64(0); s < testSectors; s++ {
		require.NoError(t, rd.WriteSectors(ctx, s, 1, pattern(byte(s), 1)))
	}
	rd.ResetOps()

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := Config{
		Name:       "fd0",
		SectorSize: testSectorSize,
		MaxSize:    testBudget,
		Verify:     true,
		Clock:      clock.Now,
	}
	for _, o := range opts {
		o(&cfg)
	}

	dev := &testDevice{disk: rd, failWrite: map[uint64]error{}}
	c, err := New(dev, cfg)
	require.NoError(t, err)

	return &harness{t: t, ctx: ctx, dev: dev, cache: c, clock: clock}
}

// pattern returns count sectors filled with fill.
func pattern(fill byte, count uint64) []byte {
	return bytes.Repeat([]byte{fill}, int(count*testSectorSize))
}

// deviceSectors returns the sector-numbered contents originally written to
// [start, start+count).
func deviceSectors(start, count uint64) []byte {
	var buf []byte
	for s := start; s < start+count; s++ {
		buf = append(buf, pattern(byte(s), 1)...)
	}
	return buf
}

func (h *harness) read(start, count uint64) []byte {
	h.t.Helper()
	out := make([]byte, count*testSectorSize)
	require.NoError(h.t, h.cache.Read(h.ctx, start, count, out))
	return out
}

func (h *harness) write(start, count uint64, data []byte) {
	h.t.Helper()
	require.NoError(h.t, h.cache.Write(h.ctx, start, count, data))
}

type span struct {
	Start, Count uint64
	Dirty        bool
}

func (h *harness) requireLayout(want ...span) {
	h.t.Helper()
	got := make([]span, 0, h.cache.Len())
	for _, b := range h.cache.Buffers() {
		got = append(got, span{b.Start, b.Count, b.Dirty})
	}
	if want == nil {
		want = []span{}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		h.t.Fatalf("buffer layout mismatch (-want +got):\n%s", diff)
	}
	require.NoError(h.t, h.cache.Check())
}

func (h *harness) ops() []ramdisk.Op {
	return h.dev.disk.Ops()
}

var ignoreAccess = cmpopts.IgnoreFields(BufferInfo{}, "LastAccess")
