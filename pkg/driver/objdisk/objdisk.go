// Package objdisk exposes an extent.Store volume as a sector device. Sectors
// are grouped into fixed-size extents; a roaring bitmap tracks which extents
// exist so that never-written and all-zero regions cost no storage and no
// round trip.
package objdisk

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/marmos91/dittoblk/internal/logger"
	"github.com/marmos91/dittoblk/pkg/driver"
	"github.com/marmos91/dittoblk/pkg/store/extent"
)

// DefaultExtentSectors is the extent size used when Options leaves it zero.
const DefaultExtentSectors = 128

// Options configures an object-backed disk.
type Options struct {
	// Volume names the disk's extents in the store.
	Volume string

	Class      driver.Class
	Removable  bool
	SectorSize uint32
	Sectors    uint64

	// ExtentSectors is the number of sectors per stored object.
	ExtentSectors uint32

	// ReadOnly rejects writes with driver.ErrWriteProtected.
	ReadOnly bool

	// StoreType is reported as the driver name suffix, e.g. "s3".
	StoreType string
}

// Disk is a driver over an extent store.
type Disk struct {
	store    extent.Store
	volume   string
	info     driver.Info
	extent   uint64
	readOnly bool

	mu    sync.Mutex
	alloc *roaring.Bitmap
}

// Open attaches to volume in store, loading the allocation bitmap from the
// extents already present.
func Open(ctx context.Context, store extent.Store, opts Options) (*Disk, error) {
	if err := extent.ValidateVolume(opts.Volume); err != nil {
		return nil, fmt.Errorf("objdisk: %w", err)
	}
	if opts.SectorSize == 0 || opts.Sectors == 0 {
		return nil, fmt.Errorf("objdisk %s: empty geometry", opts.Volume)
	}
	if opts.ExtentSectors == 0 {
		opts.ExtentSectors = DefaultExtentSectors
	}
	extents := (opts.Sectors + uint64(opts.ExtentSectors) - 1) / uint64(opts.ExtentSectors)
	if extents > math.MaxUint32 {
		return nil, fmt.Errorf("objdisk %s: %d extents exceed the allocation map", opts.Volume, extents)
	}

	stored, err := store.ListExtents(ctx, opts.Volume)
	if err != nil {
		return nil, fmt.Errorf("objdisk %s: load extents: %w", opts.Volume, err)
	}
	alloc := roaring.New()
	for _, idx := range stored {
		if idx < extents {
			alloc.Add(uint32(idx))
		}
	}

	name := "objdisk"
	if opts.StoreType != "" {
		name += "/" + opts.StoreType
	}
	d := &Disk{
		store:  store,
		volume: opts.Volume,
		info: driver.Info{
			Driver:     name,
			Class:      opts.Class,
			Removable:  opts.Removable,
			SectorSize: opts.SectorSize,
			Sectors:    opts.Sectors,
		},
		extent:   uint64(opts.ExtentSectors),
		readOnly: opts.ReadOnly,
		alloc:    alloc,
	}

	logger.DebugCtx(ctx, "Object disk opened",
		logger.Volume(opts.Volume), logger.StoreType(opts.StoreType),
		"extents", extents, "allocated", alloc.GetCardinality())
	return d, nil
}

func (d *Disk) Info() driver.Info {
	return d.info
}

// Allocated returns the number of extents present in the store.
func (d *Disk) Allocated() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alloc.GetCardinality()
}

// extentSpan returns the first sector and length of extent idx; the last
// extent may be short.
func (d *Disk) extentSpan(idx uint64) (uint64, uint64) {
	first := idx * d.extent
	return first, min(d.extent, d.info.Sectors-first)
}

// forExtents calls fn for each extent overlapping [start, start+count) with
// the overlap expressed relative to the extent.
func (d *Disk) forExtents(start, count uint64, fn func(idx, off, n uint64) error) error {
	end := start + count
	for s := start; s < end; {
		idx := s / d.extent
		first, length := d.extentSpan(idx)
		off := s - first
		n := min(length-off, end-s)
		if err := fn(idx, off, n); err != nil {
			return err
		}
		s += n
	}
	return nil
}

// load returns extent idx padded to full length, zero-filled when absent.
func (d *Disk) load(ctx context.Context, idx uint64) ([]byte, error) {
	_, length := d.extentSpan(idx)
	buf := make([]byte, length*uint64(d.info.SectorSize))
	if !d.alloc.Contains(uint32(idx)) {
		return buf, nil
	}
	data, err := d.store.ReadExtent(ctx, d.volume, idx)
	if err != nil {
		return nil, fmt.Errorf("objdisk %s: read extent %d: %w", d.volume, idx, err)
	}
	copy(buf, data)
	return buf, nil
}

// ReadSectors implements driver.SectorReader.
func (d *Disk) ReadSectors(ctx context.Context, start, count uint64, p []byte) error {
	if err := driver.CheckRange(d.info, start, count, p); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ss := uint64(d.info.SectorSize)
	pos := uint64(0)
	return d.forExtents(start, count, func(idx, off, n uint64) error {
		dst := p[pos*ss : (pos+n)*ss]
		pos += n
		if !d.alloc.Contains(uint32(idx)) {
			clear(dst)
			return nil
		}
		buf, err := d.load(ctx, idx)
		if err != nil {
			return err
		}
		copy(dst, buf[off*ss:(off+n)*ss])
		return nil
	})
}

// WriteSectors implements driver.SectorWriter. Partial extents are
// read-modified-written; extents that end up all zero are deleted.
func (d *Disk) WriteSectors(ctx context.Context, start, count uint64, p []byte) error {
	if err := driver.CheckRange(d.info, start, count, p); err != nil {
		return err
	}
	if d.readOnly {
		return fmt.Errorf("objdisk %s: %w", d.volume, driver.ErrWriteProtected)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ss := uint64(d.info.SectorSize)
	pos := uint64(0)
	return d.forExtents(start, count, func(idx, off, n uint64) error {
		src := p[pos*ss : (pos+n)*ss]
		pos += n

		_, length := d.extentSpan(idx)
		var buf []byte
		if off == 0 && n == length {
			buf = src
		} else {
			var err error
			if buf, err = d.load(ctx, idx); err != nil {
				return err
			}
			copy(buf[off*ss:], src)
		}

		if isZero(buf) {
			if !d.alloc.Contains(uint32(idx)) {
				return nil
			}
			if err := d.store.DeleteExtent(ctx, d.volume, idx); err != nil {
				return fmt.Errorf("objdisk %s: delete extent %d: %w", d.volume, idx, err)
			}
			d.alloc.Remove(uint32(idx))
			return nil
		}

		if err := d.store.WriteExtent(ctx, d.volume, idx, buf); err != nil {
			return fmt.Errorf("objdisk %s: write extent %d: %w", d.volume, idx, err)
		}
		d.alloc.Add(uint32(idx))
		return nil
	})
}

// Flush implements driver.Flusher by checking the store is still reachable;
// every extent write is already durable when WriteSectors returns.
func (d *Disk) Flush(ctx context.Context) error {
	return d.store.HealthCheck(ctx)
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

var (
	_ driver.SectorReader = (*Disk)(nil)
	_ driver.SectorWriter = (*Disk)(nil)
	_ driver.Flusher      = (*Disk)(nil)
)
