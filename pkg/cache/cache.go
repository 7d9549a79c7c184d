package cache

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/marmos91/dittoblk/internal/logger"
	"github.com/marmos91/dittoblk/pkg/bufpool"
)

// Config configures a Cache.
type Config struct {
	// Name identifies the disk in logs and metrics.
	Name string

	// SectorSize is the device sector size in bytes. Must be nonzero.
	SectorSize uint32

	// MaxSize is the byte budget. Zero selects DefaultMaxSize.
	MaxSize uint64

	// Verify runs Check after every structural mutation and panics with an
	// *InvariantError on the first violation.
	Verify bool

	// Allocator supplies payload memory. Nil selects an unlimited allocator.
	Allocator *bufpool.Allocator

	// Metrics receives cache events. Optional.
	Metrics Metrics

	// Clock returns the current time for last-access stamps. Nil selects
	// time.Now.
	Clock func() time.Time
}

// Cache is the per-disk sector cache. See the package documentation for the
// locking contract.
type Cache struct {
	name       string
	dev        Device
	sectorSize uint64
	maxSize    uint64
	verify     bool
	alloc      *bufpool.Allocator
	metrics    Metrics
	now        func() time.Time

	buffers []*buffer
	size    uint64
	dirty   int
}

// New creates an empty cache in front of dev.
func New(dev Device, cfg Config) (*Cache, error) {
	if dev == nil {
		return nil, errors.New("cache: nil device")
	}
	if cfg.SectorSize == 0 {
		return nil, errors.New("cache: sector size must be nonzero")
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.Allocator == nil {
		cfg.Allocator = bufpool.NewAllocator(0, nil)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Cache{
		name:       cfg.Name,
		dev:        dev,
		sectorSize: uint64(cfg.SectorSize),
		maxSize:    cfg.MaxSize,
		verify:     cfg.Verify,
		alloc:      cfg.Allocator,
		metrics:    cfg.Metrics,
		now:        cfg.Clock,
	}, nil
}

// Size returns the resident payload bytes.
func (c *Cache) Size() uint64 {
	return c.size
}

// MaxSize returns the byte budget.
func (c *Cache) MaxSize() uint64 {
	return c.maxSize
}

// DirtyCount returns the number of dirty buffers.
func (c *Cache) DirtyCount() int {
	return c.dirty
}

// Len returns the number of resident buffers.
func (c *Cache) Len() int {
	return len(c.buffers)
}

// Stats returns a summary of the cache.
func (c *Cache) Stats() Stats {
	return Stats{Buffers: len(c.buffers), Dirty: c.dirty, Size: c.size, MaxSize: c.maxSize}
}

// Buffers returns snapshots of the resident buffers in sector order.
func (c *Cache) Buffers() []BufferInfo {
	out := make([]BufferInfo, len(c.buffers))
	for i, b := range c.buffers {
		out[i] = b.info()
	}
	return out
}

func (c *Cache) bytes(sectors uint64) uint64 {
	return sectors * c.sectorSize
}

// checkRequest validates a sector range and its payload length.
func (c *Cache) checkRequest(start, count uint64, p []byte) error {
	if count == 0 {
		return fmt.Errorf("%w: zero sector count", ErrInvalidRange)
	}
	if start+count < start {
		return fmt.Errorf("%w: [%d,+%d) overflows", ErrInvalidRange, start, count)
	}
	if count > math.MaxUint64/c.sectorSize {
		return fmt.Errorf("%w: %d sectors of %d bytes overflows", ErrInvalidRange, count, c.sectorSize)
	}
	if uint64(len(p)) != c.bytes(count) {
		return fmt.Errorf("%w: %d bytes for %d sectors of %d", ErrInvalidRange, len(p), count, c.sectorSize)
	}
	return nil
}

func (c *Cache) markDirty(b *buffer) {
	if !b.dirty {
		b.dirty = true
		c.dirty++
	}
}

func (c *Cache) markClean(b *buffer) {
	if b.dirty {
		b.dirty = false
		c.dirty--
	}
}

func (c *Cache) touch(b *buffer) {
	b.lastAccess = c.now()
}

// newBuffer allocates a buffer and fills it from src.
func (c *Cache) newBuffer(start, count uint64, src []byte) (*buffer, error) {
	data, err := c.alloc.Alloc(int(c.bytes(count)))
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordAllocFailure(c.name)
		}
		return nil, err
	}
	copy(data, src)
	return &buffer{start: start, count: count, data: data}, nil
}

func (c *Cache) freeBuffer(b *buffer) {
	c.alloc.Free(b.data)
	b.data = nil
}

func byStart(e *buffer, s uint64) int {
	return cmp.Compare(e.start, s)
}

// indexOf returns the position of b in the sequence, or -1.
func (c *Cache) indexOf(b *buffer) int {
	i, found := slices.BinarySearchFunc(c.buffers, b.start, byStart)
	if !found || c.buffers[i] != b {
		return -1
	}
	return i
}

// insert places b at its sorted position. The caller guarantees no overlap.
func (c *Cache) insert(b *buffer) {
	i, _ := slices.BinarySearchFunc(c.buffers, b.start, byStart)
	c.buffers = slices.Insert(c.buffers, i, b)
	c.size += c.bytes(b.count)
	if b.dirty {
		c.dirty++
	}
}

// removeAt unlinks and frees the buffer at index i.
func (c *Cache) removeAt(i int) {
	b := c.buffers[i]
	c.buffers = slices.Delete(c.buffers, i, i+1)
	c.size -= c.bytes(b.count)
	if b.dirty {
		c.dirty--
	}
	c.freeBuffer(b)
}

func (c *Cache) mutated(op string) {
	if c.metrics != nil {
		c.metrics.RecordState(c.name, c.size, len(c.buffers), c.dirty)
	}
	if !c.verify {
		return
	}
	if err := c.Check(); err != nil {
		var ie *InvariantError
		if errors.As(err, &ie) {
			ie.Op = op
		}
		logger.Error("sector cache corrupted", logger.KeyDisk, c.name, logger.KeyOperation, op, logger.Err(err))
		panic(err)
	}
}
