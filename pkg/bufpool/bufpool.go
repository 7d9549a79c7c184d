// Package bufpool supplies payload memory for cache buffers.
//
// A Pool recycles byte slices in three size classes through sync.Pool. An
// Allocator sits on top of a Pool and enforces a hard ceiling on the bytes
// handed out at any one time; once the ceiling is reached Alloc fails with
// ErrExhausted instead of growing the heap. The sector cache still returns
// the data to the caller on that failure; it just does not cache it.
//
// # Usage
//
//	a := bufpool.NewAllocator(64<<20, nil)
//	p, err := a.Alloc(count * sectorSize)
//	if err != nil { ... }
//	defer a.Free(p)
package bufpool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Size classes. A floppy track (18 x 512 B) fits in the small class and a
// 128-sector request of 512 B sectors in the medium class.
const (
	DefaultSmallSize  = 16 << 10
	DefaultMediumSize = 128 << 10
	DefaultLargeSize  = 1 << 20
)

// ErrExhausted is returned by Allocator.Alloc when the request would push
// outstanding memory past the allocator's limit.
var ErrExhausted = errors.New("bufpool: allocation limit reached")

// Config holds the size classes for a custom Pool. Zero fields take the
// defaults.
type Config struct {
	SmallSize  int
	MediumSize int
	LargeSize  int
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		SmallSize:  DefaultSmallSize,
		MediumSize: DefaultMediumSize,
		LargeSize:  DefaultLargeSize,
	}
}

type class struct {
	size int
	pool sync.Pool
}

// Pool manages byte slices organized by size class. Requests larger than the
// largest class are allocated directly and never pooled.
type Pool struct {
	classes [3]*class
}

// NewPool creates a pool with the given configuration; nil means defaults.
func NewPool(cfg *Config) *Pool {
	c := DefaultConfig()
	if cfg != nil {
		if cfg.SmallSize > 0 {
			c.SmallSize = cfg.SmallSize
		}
		if cfg.MediumSize > 0 {
			c.MediumSize = cfg.MediumSize
		}
		if cfg.LargeSize > 0 {
			c.LargeSize = cfg.LargeSize
		}
	}

	p := &Pool{}
	for i, size := range []int{c.SmallSize, c.MediumSize, c.LargeSize} {
		cl := &class{size: size}
		cl.pool.New = func() any {
			buf := make([]byte, cl.size)
			return &buf
		}
		p.classes[i] = cl
	}
	return p
}

func (p *Pool) classFor(size int) *class {
	for _, cl := range p.classes {
		if size <= cl.size {
			return cl
		}
	}
	return nil
}

// Get returns a slice of exactly size bytes. Its contents are undefined; the
// capacity may exceed size. Return it with Put.
func (p *Pool) Get(size int) []byte {
	cl := p.classFor(size)
	if cl == nil {
		return make([]byte, size)
	}
	buf := *cl.pool.Get().(*[]byte)
	return buf[:size]
}

// Put returns a buffer obtained from Get. Slices whose capacity matches no
// class are left to the garbage collector.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	for _, cl := range p.classes {
		if cap(buf) == cl.size {
			full := buf[:cap(buf)]
			cl.pool.Put(&full)
			return
		}
	}
}

var globalPool = NewPool(nil)

// Get returns a slice from the package-level pool.
func Get(size int) []byte {
	return globalPool.Get(size)
}

// Put returns a slice to the package-level pool.
func Put(buf []byte) {
	globalPool.Put(buf)
}

// Allocator hands out pooled payloads under a byte limit. It is safe for
// concurrent use; several disk caches may share one allocator.
type Allocator struct {
	pool  *Pool
	limit uint64
	used  atomic.Uint64
	fails atomic.Uint64
}

// NewAllocator returns an allocator capped at limit bytes. A zero limit means
// unlimited. A nil pool selects the package-level pool.
func NewAllocator(limit uint64, pool *Pool) *Allocator {
	if pool == nil {
		pool = globalPool
	}
	return &Allocator{pool: pool, limit: limit}
}

// Alloc reserves n bytes. Accounting uses the requested length, not the
// pooled capacity.
func (a *Allocator) Alloc(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("bufpool: negative allocation size %d", n)
	}
	size := uint64(n)
	for {
		used := a.used.Load()
		if a.limit > 0 && used+size > a.limit {
			a.fails.Add(1)
			return nil, fmt.Errorf("%w: %d bytes requested, %d of %d in use", ErrExhausted, n, used, a.limit)
		}
		if a.used.CompareAndSwap(used, used+size) {
			break
		}
	}
	return a.pool.Get(n), nil
}

// Free releases a payload obtained from Alloc. It must be called exactly once
// per successful Alloc, with the slice length unchanged.
func (a *Allocator) Free(buf []byte) {
	if buf == nil {
		return
	}
	a.used.Add(^uint64(len(buf) - 1))
	a.pool.Put(buf)
}

// InUse returns the bytes currently allocated.
func (a *Allocator) InUse() uint64 {
	return a.used.Load()
}

// Limit returns the configured ceiling, zero meaning unlimited.
func (a *Allocator) Limit() uint64 {
	return a.limit
}

// Failures returns how many Alloc calls were refused.
func (a *Allocator) Failures() uint64 {
	return a.fails.Load()
}
