package cache

import (
	"context"

	"github.com/marmos91/dittoblk/internal/logger"
)

// cacheFetched adds sectors just read from the device. A refused allocation
// only means the data is not cached; the caller still has it.
func (c *Cache) cacheFetched(start, count uint64, data []byte) {
	b, err := c.add(start, count, data)
	if err != nil {
		logger.Debug("read not cached", logger.KeyDisk, c.name,
			logger.KeySector, start, logger.KeyCount, count, logger.Err(err))
		return
	}
	c.touch(b)
}

// Read fills out with sectors [start, start+count). Resident sectors are
// copied from the cache; every gap is read from the device and cached.
func (c *Cache) Read(ctx context.Context, start, count uint64, out []byte) error {
	if err := c.checkRequest(start, count, out); err != nil {
		return err
	}

	for count > 0 {
		i, ok := c.find(start, count)
		if !ok {
			if err := c.dev.ReadDirect(ctx, start, count, out); err != nil {
				return err
			}
			if c.metrics != nil {
				c.metrics.RecordMiss(c.name, count)
			}
			c.cacheFetched(start, count, out)
			break
		}

		b := c.buffers[i]
		first := max(start, b.start)
		n := min(count-(first-start), b.count-(first-b.start))

		if gap := first - start; gap > 0 {
			p := out[:c.bytes(gap)]
			if err := c.dev.ReadDirect(ctx, start, gap, p); err != nil {
				return err
			}
			if c.metrics != nil {
				c.metrics.RecordMiss(c.name, gap)
			}
			c.cacheFetched(start, gap, p)

			start += gap
			count -= gap
			out = out[len(p):]
		}

		off := c.bytes(start - b.start)
		copy(out[:c.bytes(n)], b.data[off:off+c.bytes(n)])
		c.touch(b)
		if c.metrics != nil {
			c.metrics.RecordHit(c.name, n)
		}

		start += n
		count -= n
		out = out[c.bytes(n):]
	}

	c.pruneIfOver(ctx)
	return nil
}
