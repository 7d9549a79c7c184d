package cache

import (
	"fmt"
	"math"
	"slices"
)

// find returns the index of the first buffer intersecting [start, start+count).
func (c *Cache) find(start, count uint64) (int, bool) {
	// Buffers are disjoint and sorted, so their ends are sorted too. The
	// search lands on the buffer containing start, or on the first buffer
	// that begins after it.
	i, _ := slices.BinarySearchFunc(c.buffers, start, func(e *buffer, s uint64) int {
		switch {
		case e.end() <= s:
			return -1
		case e.start > s:
			return 1
		}
		return 0
	})
	if i < len(c.buffers) && c.buffers[i].start < rangeEnd(start, count) {
		return i, true
	}
	return i, false
}

// rangeEnd returns start+count, saturating at the last sector number.
func rangeEnd(start, count uint64) uint64 {
	if count > math.MaxUint64-start {
		return math.MaxUint64
	}
	return start + count
}

// Find returns the first resident buffer intersecting [start, start+count)
// in sector order.
func (c *Cache) Find(start, count uint64) (BufferInfo, bool) {
	if count == 0 {
		return BufferInfo{}, false
	}
	i, ok := c.find(start, count)
	if !ok {
		return BufferInfo{}, false
	}
	return c.buffers[i].info(), true
}

// QueryRange reports the earliest cached sub-range of [start, start+count).
// It returns the first cached sector and how many consecutive sectors from
// there are resident in one buffer; n is zero when nothing is cached.
func (c *Cache) QueryRange(start, count uint64) (first, n uint64) {
	if count == 0 {
		return 0, 0
	}
	i, ok := c.find(start, count)
	if !ok {
		return 0, 0
	}
	b := c.buffers[i]
	count = rangeEnd(start, count) - start
	first = max(start, b.start)
	n = min(count-(first-start), b.count-(first-b.start))
	return first, n
}

// add inserts a new clean buffer holding a copy of data.
func (c *Cache) add(start, count uint64, data []byte) (*buffer, error) {
	b, err := c.newBuffer(start, count, data)
	if err != nil {
		return nil, err
	}
	c.insert(b)
	c.mutated("add")
	return b, nil
}

// Add caches [start, start+count) with a copy of data as a clean buffer. The
// range must not intersect a resident buffer. On allocation failure the cache
// is unchanged and the error wraps bufpool.ErrExhausted.
func (c *Cache) Add(start, count uint64, data []byte) error {
	if err := c.checkRequest(start, count, data); err != nil {
		return err
	}
	if _, ok := c.find(start, count); ok {
		return fmt.Errorf("%w: [%d,%d)", ErrOverlap, start, start+count)
	}
	b, err := c.add(start, count, data)
	if err != nil {
		return err
	}
	c.touch(b)
	return nil
}

// split replaces b with up to three buffers: the untouched leading slice,
// [start, start+count) filled from data, and the untouched trailing slice.
// All three inherit b's dirty flag and last access. It returns the middle
// buffer. Nothing changes on failure.
func (c *Cache) split(b *buffer, start, count uint64, data []byte) (*buffer, error) {
	prevSectors := start - b.start
	nextSectors := b.end() - (start + count)
	if prevSectors == 0 && nextSectors == 0 {
		return nil, fmt.Errorf("%w: %d sectors from a %d-sector buffer", ErrWholeBuffer, count, b.count)
	}

	idx := c.indexOf(b)
	if idx < 0 {
		return nil, fmt.Errorf("%w: buffer at %d", ErrNotCached, b.start)
	}

	parts := make([]*buffer, 0, 3)
	release := func() {
		for _, p := range parts {
			c.freeBuffer(p)
		}
	}

	if prevSectors > 0 {
		prev, err := c.newBuffer(b.start, prevSectors, b.data[:c.bytes(prevSectors)])
		if err != nil {
			return nil, err
		}
		parts = append(parts, prev)
	}

	mid, err := c.newBuffer(start, count, data)
	if err != nil {
		release()
		return nil, err
	}
	parts = append(parts, mid)

	if nextSectors > 0 {
		off := c.bytes(prevSectors + count)
		next, err := c.newBuffer(start+count, nextSectors, b.data[off:])
		if err != nil {
			release()
			return nil, err
		}
		parts = append(parts, next)
	}

	for _, p := range parts {
		p.dirty = b.dirty
		p.lastAccess = b.lastAccess
	}
	if b.dirty {
		c.dirty += len(parts) - 1
	}

	c.buffers = slices.Replace(c.buffers, idx, idx+1, parts...)
	c.freeBuffer(b)

	if c.metrics != nil {
		c.metrics.RecordSplit(c.name)
	}
	c.mutated("split")
	return mid, nil
}

// Split carves [start, start+count) out of the resident buffer containing
// it, filling the new middle buffer from data. The range must lie inside one
// buffer and must not be the whole buffer.
func (c *Cache) Split(start, count uint64, data []byte) error {
	if err := c.checkRequest(start, count, data); err != nil {
		return err
	}
	i, ok := c.find(start, count)
	if !ok {
		return fmt.Errorf("%w: [%d,%d)", ErrNotCached, start, start+count)
	}
	b := c.buffers[i]
	if start < b.start || start+count > b.end() {
		return fmt.Errorf("%w: [%d,%d) is not inside buffer [%d,%d)",
			ErrInvalidRange, start, start+count, b.start, b.end())
	}
	_, err := c.split(b, start, count, data)
	return err
}

// Remove drops the buffer that begins at start, discarding its contents
// whether or not it is dirty.
func (c *Cache) Remove(start uint64) error {
	i, found := slices.BinarySearchFunc(c.buffers, start, byStart)
	if !found {
		return fmt.Errorf("%w: no buffer starts at %d", ErrNotCached, start)
	}
	c.removeAt(i)
	c.mutated("remove")
	return nil
}
