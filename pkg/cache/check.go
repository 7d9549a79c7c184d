package cache

import (
	"fmt"
	"strings"
)

// InvariantError describes a corrupted buffer sequence. In verify mode it is
// the panic value.
type InvariantError struct {
	Disk   string
	Op     string // operation after which the check ran
	Reason string
	Layout string
}

func (e *InvariantError) Error() string {
	var sb strings.Builder
	sb.WriteString("sector cache invariant violated")
	if e.Disk != "" {
		fmt.Fprintf(&sb, " on %s", e.Disk)
	}
	if e.Op != "" {
		fmt.Fprintf(&sb, " after %s", e.Op)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Reason)
	return sb.String()
}

// layout renders the buffer sequence, one buffer per line.
func (c *Cache) layout() string {
	var sb strings.Builder
	for _, b := range c.buffers {
		fmt.Fprintf(&sb, "%s cache: %d->%d (%d sectors)", c.name, b.start, b.end()-1, b.count)
		if b.dirty {
			sb.WriteString(" (dirty)")
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Check walks the whole sequence and verifies that buffers are strictly
// ordered and disjoint, that payload lengths match their sector counts, and
// that the size and dirty counters match the buffers.
func (c *Cache) Check() error {
	fail := func(format string, args ...any) error {
		return &InvariantError{Disk: c.name, Reason: fmt.Sprintf(format, args...), Layout: c.layout()}
	}

	var size uint64
	dirty := 0
	for i, b := range c.buffers {
		if b.count == 0 {
			return fail("buffer %d is empty", b.start)
		}
		if uint64(len(b.data)) != c.bytes(b.count) {
			return fail("buffer %d holds %d bytes for %d sectors", b.start, len(b.data), b.count)
		}
		if i > 0 {
			prev := c.buffers[i-1]
			if prev.start >= b.start {
				return fail("start %d >= next start %d", prev.start, b.start)
			}
			if prev.end() > b.start {
				return fail("buffer [%d,%d) overlaps next start %d", prev.start, prev.end(), b.start)
			}
		}
		size += c.bytes(b.count)
		if b.dirty {
			dirty++
		}
	}

	if size != c.size {
		return fail("buffers hold %d bytes, size counter says %d", size, c.size)
	}
	if dirty != c.dirty {
		return fail("%d dirty buffers, dirty counter says %d", dirty, c.dirty)
	}
	return nil
}
