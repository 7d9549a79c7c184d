package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/dittoblk/internal/logger"
	"github.com/marmos91/dittoblk/pkg/bufpool"
)

// addDirty caches data as a new dirty buffer. When the pool refuses the
// allocation the sectors are written through to the device instead, so an
// acknowledged write is always either resident or on the medium.
func (c *Cache) addDirty(ctx context.Context, start, count uint64, data []byte) error {
	b, err := c.newBuffer(start, count, data)
	if err != nil {
		if !errors.Is(err, bufpool.ErrExhausted) {
			return err
		}
		logger.Debug("cache full, writing through", logger.KeyDisk, c.name,
			logger.KeySector, start, logger.KeyCount, count)
		if werr := c.dev.WriteDirect(ctx, start, count, data); werr != nil {
			return fmt.Errorf("write-through of sectors [%d,%d): %w", start, start+count, werr)
		}
		return nil
	}
	b.dirty = true
	c.insert(b)
	c.touch(b)
	c.mutated("add")
	return nil
}

// overwrite copies data into b at start.
func (c *Cache) overwrite(b *buffer, start, count uint64, data []byte) {
	off := c.bytes(start - b.start)
	copy(b.data[off:off+c.bytes(count)], data)
}

// Write stores sectors [start, start+count) from in. The sectors become
// dirty and reach the device on the next Sync, Invalidate or eviction.
func (c *Cache) Write(ctx context.Context, start, count uint64, in []byte) error {
	if err := c.checkRequest(start, count, in); err != nil {
		return err
	}

	for count > 0 {
		i, ok := c.find(start, count)
		if !ok {
			if err := c.addDirty(ctx, start, count, in); err != nil {
				return err
			}
			break
		}

		b := c.buffers[i]
		first := max(start, b.start)
		n := min(count-(first-start), b.count-(first-b.start))

		if gap := first - start; gap > 0 {
			p := in[:c.bytes(gap)]
			if err := c.addDirty(ctx, start, gap, p); err != nil {
				return err
			}
			start += gap
			count -= gap
			in = in[len(p):]
		}

		p := in[:c.bytes(n)]
		if !b.dirty && n != b.count {
			// Keep the untouched parts of a clean buffer clean.
			mid, err := c.split(b, start, n, p)
			if err != nil {
				logger.Debug("split failed, dirtying whole buffer", logger.KeyDisk, c.name,
					logger.KeySector, b.start, logger.KeyCount, b.count, logger.Err(err))
				c.overwrite(b, start, n, p)
			} else {
				b = mid
			}
		} else {
			c.overwrite(b, start, n, p)
		}
		c.markDirty(b)
		c.touch(b)
		c.mutated("write")

		start += n
		count -= n
		in = in[len(p):]
	}

	c.pruneIfOver(ctx)
	return nil
}
