package daemon

import (
	"context"
	"slices"
	"time"

	"github.com/marmos91/dittoblk/internal/logger"
	"github.com/marmos91/dittoblk/pkg/disk"
	"github.com/marmos91/dittoblk/pkg/driver"
)

// IdleConfig configures the idle daemon.
type IdleConfig struct {
	// IdleTimeout is how long a drive must go unused before its motor stops.
	// Default: 2s
	IdleTimeout time.Duration

	// PollInterval is the sweep period.
	// Default: 1s
	PollInterval time.Duration

	// Classes lists the drive classes whose motors are managed.
	// Default: floppy only
	Classes []driver.Class

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// DefaultIdleConfig returns the floppy-only defaults.
func DefaultIdleConfig() IdleConfig {
	return IdleConfig{
		IdleTimeout:  2 * time.Second,
		PollInterval: time.Second,
		Classes:      []driver.Class{driver.ClassFloppy},
	}
}

// Idle stops the motors of removable drives that have been idle longer than
// the configured timeout.
type Idle struct {
	reg *disk.Registry
	cfg IdleConfig
	t   *ticker
}

// NewIdle creates an idle daemon over reg. Zero fields take defaults.
func NewIdle(reg *disk.Registry, cfg IdleConfig) *Idle {
	def := DefaultIdleConfig()
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if len(cfg.Classes) == 0 {
		cfg.Classes = def.Classes
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	i := &Idle{reg: reg, cfg: cfg}
	i.t = newTicker("idle daemon", cfg.PollInterval, func(ctx context.Context) {
		i.Sweep(ctx)
	})
	return i
}

func (i *Idle) Start(ctx context.Context) {
	i.t.start(ctx)
}

func (i *Idle) Stop(timeout time.Duration) {
	i.t.stop(timeout)
}

// Sweep runs one pass and returns how many motors it stopped.
func (i *Idle) Sweep(ctx context.Context) int {
	now := i.cfg.Clock()
	stopped := 0

	for _, d := range i.reg.Disks() {
		if !slices.Contains(i.cfg.Classes, d.Class()) {
			continue
		}
		idle := now.Sub(d.LastAccess())
		if idle <= i.cfg.IdleTimeout {
			continue
		}

		d.Lock()
		// A transfer may have held the lock while we waited.
		if idle = i.cfg.Clock().Sub(d.LastAccess()); idle <= i.cfg.IdleTimeout {
			d.Unlock()
			continue
		}
		wasOn := d.Flags()&disk.FlagMotorOn != 0
		err := d.MotorOff(ctx)
		isOn := d.Flags()&disk.FlagMotorOn != 0
		d.Unlock()

		if err != nil {
			logger.WarnCtx(ctx, "Failed to stop idle motor", logger.Disk(d.Name()), logger.Err(err))
			continue
		}
		if wasOn && !isOn {
			stopped++
			logger.DebugCtx(ctx, "Stopped idle motor", logger.Disk(d.Name()), "idle_seconds", idle.Seconds())
		}
	}
	return stopped
}
