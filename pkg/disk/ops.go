package disk

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/dittoblk/internal/logger"
	"github.com/marmos91/dittoblk/internal/telemetry"
	"github.com/marmos91/dittoblk/pkg/driver"
)

// sync writes back dirty sectors and flushes the driver. Later errors
// replace earlier ones. Requires the lock.
func (d *Disk) sync(ctx context.Context) error {
	var err error
	if d.cache != nil {
		err = d.cache.Sync(ctx)
	}
	if f, ok := d.drv.(driver.Flusher); ok && d.caps.Flush {
		if ferr := f.Flush(ctx); ferr != nil {
			err = fmt.Errorf("disk %s: flush: %w", d.name, ferr)
		}
	}
	return err
}

func (d *Disk) invalidate(ctx context.Context) error {
	if d.cache == nil {
		return nil
	}
	return d.cache.Invalidate(ctx)
}

// Sync writes back every dirty sector of the disk behind name and flushes
// the driver.
func (r *Registry) Sync(ctx context.Context, name string) error {
	t, err := r.resolve(name)
	if err != nil {
		return err
	}
	ctx, span := telemetry.StartDiskSpan(ctx, telemetry.SpanDiskSync, name)
	defer span.End()

	d := t.disk
	d.Lock()
	defer d.Unlock()
	err = d.sync(ctx)
	telemetry.RecordError(ctx, err)
	return err
}

// SyncAll syncs every physical disk in parallel and returns the combined
// errors.
func (r *Registry) SyncAll(ctx context.Context) error {
	var (
		mu   sync.Mutex
		errs error
		g    errgroup.Group
	)
	for _, d := range r.Disks() {
		g.Go(func() error {
			d.Lock()
			err := d.sync(ctx)
			d.Unlock()
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// InvalidateCache writes back and then drops every cached sector of the
// disk behind name.
func (r *Registry) InvalidateCache(ctx context.Context, name string) error {
	t, err := r.resolve(name)
	if err != nil {
		return err
	}
	ctx, span := telemetry.StartDiskSpan(ctx, telemetry.SpanDiskInvalidate, name)
	defer span.End()

	d := t.disk
	d.Lock()
	defer d.Unlock()
	err = d.invalidate(ctx)
	telemetry.RecordError(ctx, err)
	return err
}

// ReadSectors reads count sectors starting at start.
func (r *Registry) ReadSectors(ctx context.Context, name string, start, count uint64) ([]byte, error) {
	t, err := r.resolve(name)
	if err != nil {
		return nil, err
	}
	sector, err := t.translate(name, start, count)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartDiskSpan(ctx, telemetry.SpanDiskRead, name,
		telemetry.Sector(sector), telemetry.Count(count))
	defer span.End()

	d := t.disk
	buf := make([]byte, count*uint64(d.info.SectorSize))

	d.Lock()
	defer d.Unlock()
	d.touch()
	err = d.ReadWrite(ctx, sector, count, buf, ModeRead)
	d.touch()
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	return buf, nil
}

// WriteSectors writes data, exactly count sectors, starting at start.
func (r *Registry) WriteSectors(ctx context.Context, name string, start, count uint64, data []byte) error {
	t, err := r.resolve(name)
	if err != nil {
		return err
	}
	sector, err := t.translate(name, start, count)
	if err != nil {
		return err
	}
	d := t.disk
	if uint64(len(data)) != count*uint64(d.info.SectorSize) {
		return fmt.Errorf("%s: %d bytes for %d sectors: %w", name, len(data), count, ErrInvalidRange)
	}

	ctx, span := telemetry.StartDiskSpan(ctx, telemetry.SpanDiskWrite, name,
		telemetry.Sector(sector), telemetry.Count(count))
	defer span.End()

	d.Lock()
	defer d.Unlock()
	d.touch()
	err = d.ReadWrite(ctx, sector, count, data, ModeWrite)
	d.touch()
	telemetry.RecordError(ctx, err)
	return err
}

// SetFlags sets (on) or clears user-settable flags. Turning on read-only, or
// changing no-cache, writes the cache back first; changing no-cache also
// empties it. The flags are left unchanged if that fails.
func (r *Registry) SetFlags(ctx context.Context, name string, flags Flags, on bool) error {
	t, err := r.resolve(name)
	if err != nil {
		return err
	}
	flags &= UserSettable

	ctx, span := telemetry.StartDiskSpan(ctx, telemetry.SpanDiskFlags, name)
	defer span.End()

	d := t.disk
	d.Lock()
	defer d.Unlock()
	d.touch()

	if (on && flags&FlagReadOnly != 0) || flags&FlagNoCache != 0 {
		if err := d.sync(ctx); err != nil {
			telemetry.RecordError(ctx, err)
			return err
		}
	}
	if flags&FlagNoCache != 0 {
		if err := d.invalidate(ctx); err != nil {
			telemetry.RecordError(ctx, err)
			return err
		}
	}

	if on {
		d.flags |= flags
	} else {
		d.flags &^= flags
	}
	logger.InfoCtx(ctx, "Disk flags changed", logger.Disk(d.name), "flags", d.flags.String())
	return nil
}

// Flags returns the flags of the disk behind name.
func (r *Registry) Flags(name string) (Flags, error) {
	t, err := r.resolve(name)
	if err != nil {
		return 0, err
	}
	t.disk.Lock()
	defer t.disk.Unlock()
	return t.disk.flags, nil
}

// Describe returns a snapshot of the disk behind name.
func (r *Registry) Describe(name string) (Info, error) {
	t, err := r.resolve(name)
	if err != nil {
		return Info{}, err
	}
	t.disk.Lock()
	defer t.disk.Unlock()
	return t.disk.Describe(), nil
}

// Stats returns the I/O statistics of the disk behind name, or the sum over
// all disks when name is empty.
func (r *Registry) Stats(name string) (Stats, error) {
	if name == "" {
		var total Stats
		for _, d := range r.Disks() {
			d.Lock()
			total = total.Add(d.stats)
			d.Unlock()
		}
		return total, nil
	}

	t, err := r.resolve(name)
	if err != nil {
		return Stats{}, err
	}
	t.disk.Lock()
	defer t.disk.Unlock()
	return t.disk.stats, nil
}

// Shutdown syncs every disk and stops the motors of removable drives.
func (r *Registry) Shutdown(ctx context.Context) error {
	errs := r.SyncAll(ctx)
	for _, d := range r.Disks() {
		d.Lock()
		if d.info.Removable && d.flags&FlagMotorOn != 0 {
			errs = multierr.Append(errs, d.MotorOff(ctx))
		}
		d.Unlock()
	}
	if errs != nil {
		logger.WarnCtx(ctx, "Shutdown completed with errors", logger.Err(errs))
	}
	return errs
}
