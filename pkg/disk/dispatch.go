package disk

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/dittoblk/internal/logger"
	"github.com/marmos91/dittoblk/pkg/driver"
)

// ReadWrite transfers count sectors starting at start between buf and the
// disk, through the cache unless caching is disabled for the disk or for this
// request. Time and volume are accounted whatever the outcome. Requires the
// lock.
func (d *Disk) ReadWrite(ctx context.Context, start, count uint64, buf []byte, mode Mode) error {
	d.assertLocked("ReadWrite")

	write := mode.write()
	if write && d.flags&FlagReadOnly != 0 {
		return fmt.Errorf("disk %s: %w", d.name, driver.ErrWriteProtected)
	}

	begin := d.now()
	direct := d.flags&FlagNoCache != 0 || mode&ModeNoCache != 0

	var err error
	if direct {
		err = d.DirectReadWrite(ctx, start, count, buf, mode)
	} else {
		err = d.cached(ctx, start, count, buf, write)
	}

	elapsed := d.now().Sub(begin)
	d.stats.record(write, elapsed, count*uint64(d.info.SectorSize)/1024)
	if d.metrics != nil {
		d.metrics.ObserveIO(d.name, write, direct, count, elapsed, err)
	}
	return err
}

func (d *Disk) cached(ctx context.Context, start, count uint64, buf []byte, write bool) error {
	c, err := d.ensureCache()
	if err != nil {
		return err
	}
	if write {
		return c.Write(ctx, start, count, buf)
	}
	return c.Read(ctx, start, count, buf)
}

// DirectReadWrite calls the driver primitive for the request, bypassing the
// cache. A write refused as write-protected marks the disk read-only.
// Requires the lock.
func (d *Disk) DirectReadWrite(ctx context.Context, start, count uint64, buf []byte, mode Mode) error {
	d.assertLocked("DirectReadWrite")

	if !mode.write() {
		r, ok := d.drv.(driver.SectorReader)
		if !ok || !d.caps.Read {
			return fmt.Errorf("disk %s: read: %w", d.name, driver.ErrUnsupported)
		}
		d.spinUp(ctx)
		if err := r.ReadSectors(ctx, start, count, buf); err != nil {
			logger.DebugCtx(ctx, "Direct read failed",
				logger.Disk(d.name), logger.Sector(start), logger.Count(count), logger.Err(err))
			return fmt.Errorf("disk %s: read sectors %d+%d: %w", d.name, start, count, err)
		}
		return nil
	}

	w, ok := d.drv.(driver.SectorWriter)
	if !ok || !d.caps.Write {
		return fmt.Errorf("disk %s: write: %w", d.name, driver.ErrUnsupported)
	}
	d.spinUp(ctx)
	if err := w.WriteSectors(ctx, start, count, buf); err != nil {
		if errors.Is(err, driver.ErrWriteProtected) {
			d.flags |= FlagReadOnly
			logger.WarnCtx(ctx, "Media is write-protected, disk is now read-only", logger.Disk(d.name))
			if d.metrics != nil {
				d.metrics.RecordWriteProtect(d.name)
			}
		} else {
			logger.DebugCtx(ctx, "Direct write failed",
				logger.Disk(d.name), logger.Sector(start), logger.Count(count), logger.Err(err))
		}
		return fmt.Errorf("disk %s: write sectors %d+%d: %w", d.name, start, count, err)
	}
	return nil
}
