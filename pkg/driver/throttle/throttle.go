// Package throttle wraps a driver with a byte-rate limit, emulating slow
// media such as floppy drives on top of fast backends.
package throttle

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/marmos91/dittoblk/pkg/driver"
)

// Driver forwards every primitive of its inner driver, delaying transfers
// so the sustained rate stays under the configured limit.
type Driver struct {
	inner   driver.Driver
	caps    driver.Capabilities
	limiter *rate.Limiter
}

// Wrap limits inner to bytesPerSec with bursts of up to burst bytes. A burst
// of zero allows one second worth of data.
func Wrap(inner driver.Driver, bytesPerSec, burst int) (*Driver, error) {
	if bytesPerSec <= 0 {
		return nil, fmt.Errorf("throttle: rate must be positive, got %d", bytesPerSec)
	}
	if burst <= 0 {
		burst = bytesPerSec
	}
	return &Driver{
		inner:   inner,
		caps:    driver.Probe(inner),
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
	}, nil
}

func (d *Driver) Info() driver.Info {
	info := d.inner.Info()
	info.Driver += "+throttle"
	return info
}

// Capabilities reports the inner driver's primitives.
func (d *Driver) Capabilities() driver.Capabilities {
	return d.caps
}

// Unwrap returns the inner driver.
func (d *Driver) Unwrap() driver.Driver {
	return d.inner
}

// wait reserves n bytes, in burst-sized chunks since WaitN rejects requests
// larger than the burst.
func (d *Driver) wait(ctx context.Context, n int) error {
	burst := d.limiter.Burst()
	for n > 0 {
		chunk := min(n, burst)
		if err := d.limiter.WaitN(ctx, chunk); err != nil {
			return fmt.Errorf("throttle: %w", err)
		}
		n -= chunk
	}
	return nil
}

func (d *Driver) ReadSectors(ctx context.Context, start, count uint64, p []byte) error {
	r, ok := d.inner.(driver.SectorReader)
	if !ok {
		return driver.ErrUnsupported
	}
	if err := d.wait(ctx, len(p)); err != nil {
		return err
	}
	return r.ReadSectors(ctx, start, count, p)
}

func (d *Driver) WriteSectors(ctx context.Context, start, count uint64, p []byte) error {
	w, ok := d.inner.(driver.SectorWriter)
	if !ok {
		return driver.ErrUnsupported
	}
	if err := d.wait(ctx, len(p)); err != nil {
		return err
	}
	return w.WriteSectors(ctx, start, count, p)
}

func (d *Driver) Flush(ctx context.Context) error {
	f, ok := d.inner.(driver.Flusher)
	if !ok {
		return driver.ErrUnsupported
	}
	return f.Flush(ctx)
}

func (d *Driver) SetMotor(ctx context.Context, on bool) error {
	m, ok := d.inner.(driver.MotorController)
	if !ok {
		return driver.ErrUnsupported
	}
	return m.SetMotor(ctx, on)
}

func (d *Driver) SetDoor(ctx context.Context, open bool) error {
	dc, ok := d.inner.(driver.DoorController)
	if !ok {
		return driver.ErrUnsupported
	}
	return dc.SetDoor(ctx, open)
}

func (d *Driver) SetDoorLock(ctx context.Context, locked bool) error {
	dl, ok := d.inner.(driver.DoorLocker)
	if !ok {
		return driver.ErrUnsupported
	}
	return dl.SetDoorLock(ctx, locked)
}

func (d *Driver) MediaChanged(ctx context.Context) (bool, error) {
	cd, ok := d.inner.(driver.ChangeDetector)
	if !ok {
		return false, driver.ErrUnsupported
	}
	return cd.MediaChanged(ctx)
}

var (
	_ driver.CapabilityReporter = (*Driver)(nil)
	_ driver.SectorReader       = (*Driver)(nil)
	_ driver.SectorWriter       = (*Driver)(nil)
	_ driver.Flusher            = (*Driver)(nil)
	_ driver.MotorController    = (*Driver)(nil)
	_ driver.DoorController     = (*Driver)(nil)
	_ driver.DoorLocker         = (*Driver)(nil)
	_ driver.ChangeDetector     = (*Driver)(nil)
)
