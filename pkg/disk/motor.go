package disk

import (
	"context"
	"fmt"

	"github.com/marmos91/dittoblk/internal/logger"
	"github.com/marmos91/dittoblk/pkg/driver"
)

func (d *Disk) motor() (driver.MotorController, bool) {
	if !d.info.Removable || !d.caps.Motor {
		return nil, false
	}
	mc, ok := d.drv.(driver.MotorController)
	return mc, ok
}

// spinUp starts a stopped removable drive before a transfer. Failure is left
// for the transfer itself to report.
func (d *Disk) spinUp(ctx context.Context) {
	if d.flags&FlagMotorOn != 0 {
		return
	}
	mc, ok := d.motor()
	if !ok {
		return
	}
	if err := mc.SetMotor(ctx, true); err != nil {
		logger.DebugCtx(ctx, "Motor start failed", logger.Disk(d.name), logger.Err(err))
		return
	}
	d.flags |= FlagMotorOn
	if d.metrics != nil {
		d.metrics.RecordMotor(d.name, true)
	}
}

// MotorOff stops the drive motor of a removable disk. Fixed disks, drives
// already stopped and drivers without motor control are left alone. The idle
// clock restarts either way. Requires the lock.
func (d *Disk) MotorOff(ctx context.Context) error {
	d.assertLocked("MotorOff")
	d.touch()

	if d.flags&FlagMotorOn == 0 {
		return nil
	}
	mc, ok := d.motor()
	if !ok {
		return nil
	}
	if err := mc.SetMotor(ctx, false); err != nil {
		return fmt.Errorf("disk %s: motor off: %w", d.name, err)
	}
	d.flags &^= FlagMotorOn
	d.touch()
	logger.DebugCtx(ctx, "Motor off", logger.Disk(d.name))
	if d.metrics != nil {
		d.metrics.RecordMotor(d.name, false)
	}
	return nil
}
