package cache

import (
	"context"
	"fmt"

	"github.com/marmos91/dittoblk/internal/logger"
	"github.com/marmos91/dittoblk/pkg/driver"
)

// Sync writes every dirty buffer back to the device and marks it clean. It
// is a no-op when nothing is dirty. On a read-only device the buffers stay
// dirty and the error wraps driver.ErrWriteProtected. Sync keeps going past
// failed buffers and returns the last error; the failed buffers stay dirty.
func (c *Cache) Sync(ctx context.Context) error {
	if c.dirty == 0 {
		return nil
	}
	if c.dev.ReadOnly() {
		return fmt.Errorf("cache %s: %d dirty buffers: %w", c.name, c.dirty, driver.ErrWriteProtected)
	}

	var lastErr error
	for _, b := range c.buffers {
		if !b.dirty {
			continue
		}
		err := c.dev.WriteDirect(ctx, b.start, b.count, b.data)
		if c.metrics != nil {
			c.metrics.RecordFlush(c.name, b.count, err)
		}
		if err != nil {
			lastErr = err
			continue
		}
		c.markClean(b)
	}
	c.mutated("sync")
	return lastErr
}

// Invalidate syncs what it can and then discards every buffer. Sectors that
// could not be written back are lost; the sync error is returned.
func (c *Cache) Invalidate(ctx context.Context) error {
	err := c.Sync(ctx)
	if c.dirty > 0 {
		logger.Warn("invalidating dirty disk cache", logger.KeyDisk, c.name,
			logger.KeyDirty, c.dirty, logger.Err(err))
	}

	for _, b := range c.buffers {
		c.freeBuffer(b)
	}
	c.buffers = nil
	c.size = 0
	c.dirty = 0
	c.mutated("invalidate")
	return err
}
