package cache

import (
	"context"
	"fmt"

	"github.com/marmos91/dittoblk/internal/logger"
)

// pruneIfOver runs Prune when the cache is over budget. Eviction failures
// are logged; the read or write that triggered them already succeeded.
func (c *Cache) pruneIfOver(ctx context.Context) {
	if c.size <= c.maxSize {
		return
	}
	if err := c.Prune(ctx); err != nil {
		logger.Warn("cache prune stopped", logger.KeyDisk, c.name,
			logger.KeyCacheSize, c.size, logger.KeyCacheLimit, c.maxSize, logger.Err(err))
	}
}

// Prune evicts least recently used buffers until the cache fits its budget.
// Dirty victims are written back first; a failed write-back stops pruning
// and is returned. The last remaining buffer is never evicted, so a single
// buffer larger than the budget stays resident.
func (c *Cache) Prune(ctx context.Context) error {
	evicted := 0
	defer func() {
		if evicted > 0 {
			logger.Debug("cache pruned", logger.KeyDisk, c.name, logger.KeyEvicted, evicted,
				logger.KeyCacheSize, c.size, logger.KeyCacheLimit, c.maxSize)
		}
	}()

	for c.size > c.maxSize {
		if len(c.buffers) <= 1 {
			break
		}

		// Oldest last access wins; ties go to the lowest sector.
		oldest := 0
		for i, b := range c.buffers[1:] {
			if b.lastAccess.Before(c.buffers[oldest].lastAccess) {
				oldest = i + 1
			}
		}
		victim := c.buffers[oldest]
		wasDirty := victim.dirty

		if victim.dirty {
			err := c.dev.WriteDirect(ctx, victim.start, victim.count, victim.data)
			if c.metrics != nil {
				c.metrics.RecordFlush(c.name, victim.count, err)
			}
			if err != nil {
				return fmt.Errorf("evict sectors [%d,%d): %w", victim.start, victim.end(), err)
			}
			c.markClean(victim)
		}

		c.removeAt(oldest)
		evicted++
		if c.metrics != nil {
			c.metrics.RecordEviction(c.name, wasDirty)
		}
		c.mutated("prune")
	}
	return nil
}
