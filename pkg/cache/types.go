// Package cache implements the per-disk write-back sector cache.
//
// A Cache keeps a sorted, non-overlapping sequence of buffers, each holding a
// contiguous run of sectors. Reads are served from resident buffers and the
// gaps are fetched from the device and cached; writes land in the cache and
// are only pushed to the device by Sync, Invalidate, or eviction of a dirty
// buffer. When the resident size exceeds the byte budget the least recently
// used buffers are evicted.
//
// A Cache performs no locking of its own. Every method must be called with
// the owning disk's lock held.
package cache

import (
	"context"
	"errors"
	"time"
)

// DefaultMaxSize is the default per-disk byte budget (1 MiB).
const DefaultMaxSize = 1 << 20

var (
	// ErrInvalidRange is returned for zero-length, overflowing or mis-sized
	// requests.
	ErrInvalidRange = errors.New("invalid sector range")

	// ErrWholeBuffer is returned by Split when the requested sub-range is the
	// entire buffer.
	ErrWholeBuffer = errors.New("split range covers the whole buffer")

	// ErrNotCached is returned when an operation needs a resident buffer that
	// is not there.
	ErrNotCached = errors.New("sectors not cached")

	// ErrOverlap is returned by Add when the new range intersects a resident
	// buffer.
	ErrOverlap = errors.New("range overlaps a cached buffer")
)

// Device performs uncached transfers for the cache. The disk dispatcher's
// direct path satisfies it, so write-protect detection applies to flushes.
type Device interface {
	ReadDirect(ctx context.Context, start, count uint64, p []byte) error
	WriteDirect(ctx context.Context, start, count uint64, p []byte) error
	ReadOnly() bool
}

// buffer is one resident run of sectors [start, start+count).
type buffer struct {
	start      uint64
	count      uint64
	data       []byte
	dirty      bool
	lastAccess time.Time
}

func (b *buffer) end() uint64 {
	return b.start + b.count
}

// BufferInfo is a read-only snapshot of a buffer.
type BufferInfo struct {
	Start      uint64    `json:"start"`
	Count      uint64    `json:"count"`
	Dirty      bool      `json:"dirty"`
	LastAccess time.Time `json:"last_access"`
}

// End returns the first sector after the buffer.
func (b BufferInfo) End() uint64 {
	return b.Start + b.Count
}

func (b *buffer) info() BufferInfo {
	return BufferInfo{Start: b.start, Count: b.count, Dirty: b.dirty, LastAccess: b.lastAccess}
}

// Stats is a point-in-time summary of a cache.
type Stats struct {
	Buffers int    `json:"buffers"`
	Dirty   int    `json:"dirty"`
	Size    uint64 `json:"size"`
	MaxSize uint64 `json:"max_size"`
}
