package disk

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/dittoblk/internal/logger"
	"github.com/marmos91/dittoblk/internal/telemetry"
	"github.com/marmos91/dittoblk/pkg/driver"
)

// SetDoorLock locks or unlocks the media door.
func (r *Registry) SetDoorLock(ctx context.Context, name string, locked bool) error {
	t, err := r.resolve(name)
	if err != nil {
		return err
	}
	d := t.disk
	dl, ok := d.drv.(driver.DoorLocker)
	if !ok || !d.caps.DoorLock {
		return fmt.Errorf("disk %s: door lock: %w", d.name, driver.ErrUnsupported)
	}

	d.Lock()
	defer d.Unlock()
	if err := dl.SetDoorLock(ctx, locked); err != nil {
		return fmt.Errorf("disk %s: door lock: %w", d.name, err)
	}
	return nil
}

// SetDoor opens or closes the door of a removable disk. The cache is
// written back and emptied first since the media may change.
func (r *Registry) SetDoor(ctx context.Context, name string, open bool) error {
	t, err := r.resolve(name)
	if err != nil {
		return err
	}
	d := t.disk
	if !d.info.Removable {
		return fmt.Errorf("disk %s: %w", d.name, ErrNotRemovable)
	}
	dc, ok := d.drv.(driver.DoorController)
	if !ok || !d.caps.Door {
		return fmt.Errorf("disk %s: door: %w", d.name, driver.ErrUnsupported)
	}

	ctx, span := telemetry.StartDiskSpan(ctx, telemetry.SpanDiskDoor, name)
	defer span.End()

	d.Lock()
	defer d.Unlock()
	if err := d.invalidate(ctx); err != nil {
		logger.WarnCtx(ctx, "Cache not clean before door operation", logger.Disk(d.name), logger.Err(err))
	}
	if err := dc.SetDoor(ctx, open); err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("disk %s: door: %w", d.name, err)
	}
	return nil
}

// MediaPresent reports whether the drive holds readable media. Fixed disks
// always do; removable ones are probed with an uncached read of sector 0.
func (r *Registry) MediaPresent(ctx context.Context, name string) (bool, error) {
	t, err := r.resolve(name)
	if err != nil {
		return false, err
	}
	d := t.disk
	if !d.info.Removable {
		return true, nil
	}

	ctx, span := telemetry.StartDiskSpan(ctx, telemetry.SpanDiskMedia, name)
	defer span.End()

	buf := make([]byte, d.info.SectorSize)
	d.Lock()
	defer d.Unlock()
	err = d.ReadWrite(ctx, 0, 1, buf, ModeRead|ModeNoCache)
	if err != nil && !errors.Is(err, driver.ErrNoMedia) {
		logger.DebugCtx(ctx, "Media probe failed", logger.Disk(d.name), logger.Err(err))
	}
	return err == nil, nil
}

// Changed reports whether the media was swapped since the last call. A
// change drops the cache.
func (r *Registry) Changed(ctx context.Context, name string) (bool, error) {
	t, err := r.resolve(name)
	if err != nil {
		return false, err
	}
	d := t.disk
	cd, ok := d.drv.(driver.ChangeDetector)
	if !d.info.Removable || !ok || !d.caps.Change {
		return false, nil
	}

	d.Lock()
	defer d.Unlock()
	changed, err := cd.MediaChanged(ctx)
	if err != nil {
		return false, fmt.Errorf("disk %s: media change: %w", d.name, err)
	}
	if changed {
		logger.InfoCtx(ctx, "Media changed", logger.Disk(d.name))
		if err := d.invalidate(ctx); err != nil {
			logger.WarnCtx(ctx, "Dirty sectors lost on media change", logger.Disk(d.name), logger.Err(err))
		}
	}
	return changed, nil
}
