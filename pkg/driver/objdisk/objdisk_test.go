package objdisk

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoblk/pkg/driver"
	"github.com/marmos91/dittoblk/pkg/store/extent/memory"
)

const ss = 512

func open(t *testing.T, store *memory.Store, opts Options) *Disk {
	t.Helper()
	if opts.Volume == "" {
		opts.Volume = "vol"
	}
	if opts.SectorSize == 0 {
		opts.SectorSize = ss
	}
	if opts.Sectors == 0 {
		opts.Sectors = 40
	}
	if opts.ExtentSectors == 0 {
		opts.ExtentSectors = 8
	}
	d, err := Open(context.Background(), store, opts)
	require.NoError(t, err)
	return d
}

func fill(b byte, sectors int) []byte {
	return bytes.Repeat([]byte{b}, sectors*ss)
}

func TestUnwrittenReadsZero(t *testing.T) {
	store := memory.New()
	d := open(t, store, Options{})

	p := fill(0xFF, 10)
	require.NoError(t, d.ReadSectors(context.Background(), 3, 10, p))
	assert.Equal(t, make([]byte, 10*ss), p)
	assert.Zero(t, store.Len())
}

func TestWriteSpanningExtents(t *testing.T) {
	store := memory.New()
	d := open(t, store, Options{})
	ctx := context.Background()

	require.NoError(t, d.WriteSectors(ctx, 6, 12, fill(0x11, 12)))
	assert.Equal(t, uint64(3), d.Allocated(), "sectors 6..18 touch extents 0, 1 and 2")

	got := make([]byte, 14*ss)
	require.NoError(t, d.ReadSectors(ctx, 5, 14, got))
	assert.Equal(t, make([]byte, ss), got[:ss])
	assert.Equal(t, fill(0x11, 12), got[ss:13*ss])
	assert.Equal(t, make([]byte, ss), got[13*ss:])

	stored, err := store.ReadExtent(ctx, "vol", 1)
	require.NoError(t, err)
	assert.Equal(t, fill(0x11, 8), stored)
}

func TestZeroExtentsAreDeleted(t *testing.T) {
	store := memory.New()
	d := open(t, store, Options{})
	ctx := context.Background()

	require.NoError(t, d.WriteSectors(ctx, 0, 2, fill(0x22, 2)))
	require.Equal(t, 1, store.Len())

	require.NoError(t, d.WriteSectors(ctx, 0, 2, fill(0, 2)))
	assert.Zero(t, store.Len())
	assert.Zero(t, d.Allocated())
}

func TestShortLastExtent(t *testing.T) {
	store := memory.New()
	d := open(t, store, Options{Sectors: 20})
	ctx := context.Background()

	require.NoError(t, d.WriteSectors(ctx, 16, 4, fill(0x33, 4)))
	stored, err := store.ReadExtent(ctx, "vol", 2)
	require.NoError(t, err)
	assert.Len(t, stored, 4*ss)

	got := make([]byte, 4*ss)
	require.NoError(t, d.ReadSectors(ctx, 16, 4, got))
	assert.Equal(t, fill(0x33, 4), got)
}

func TestReopenRebuildsBitmap(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	d := open(t, store, Options{})
	require.NoError(t, d.WriteSectors(ctx, 9, 1, fill(0x44, 1)))
	require.NoError(t, d.WriteSectors(ctx, 33, 1, fill(0x55, 1)))

	d = open(t, store, Options{})
	assert.Equal(t, uint64(2), d.Allocated())

	got := make([]byte, ss)
	require.NoError(t, d.ReadSectors(ctx, 33, 1, got))
	assert.Equal(t, fill(0x55, 1), got)
}

func TestReadOnly(t *testing.T) {
	d := open(t, memory.New(), Options{ReadOnly: true})
	err := d.WriteSectors(context.Background(), 0, 1, fill(1, 1))
	require.ErrorIs(t, err, driver.ErrWriteProtected)
}

func TestRangeChecked(t *testing.T) {
	d := open(t, memory.New(), Options{})
	err := d.ReadSectors(context.Background(), 39, 2, make([]byte, 2*ss))
	require.ErrorIs(t, err, driver.ErrOutOfRange)
}

func TestOpenValidates(t *testing.T) {
	_, err := Open(context.Background(), memory.New(), Options{Volume: "a/b", SectorSize: ss, Sectors: 1})
	require.Error(t, err)
	_, err = Open(context.Background(), memory.New(), Options{Volume: "v"})
	require.Error(t, err)
}

func TestInfoAndCapabilities(t *testing.T) {
	d := open(t, memory.New(), Options{StoreType: "memory", Class: driver.ClassRAM})
	assert.Equal(t, "objdisk/memory", d.Info().Driver)
	caps := driver.Probe(d)
	assert.True(t, caps.Read)
	assert.True(t, caps.Write)
	assert.True(t, caps.Flush)
	assert.False(t, caps.Motor)
	assert.NoError(t, d.Flush(context.Background()))
}
