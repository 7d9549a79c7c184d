package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/dittoblk/internal/logger"
	"github.com/marmos91/dittoblk/pkg/disk"
)

// Flusher periodically syncs every disk so dirty sectors do not linger in
// memory. Without it data reaches the media only on eviction, explicit
// sync and shutdown.
type Flusher struct {
	reg *disk.Registry
	t   *ticker

	mu        sync.Mutex
	runs      int
	failed    int
	lastError error
}

// NewFlusher creates a flusher syncing reg every interval.
func NewFlusher(reg *disk.Registry, interval time.Duration) *Flusher {
	f := &Flusher{reg: reg}
	f.t = newTicker("periodic flusher", interval, func(ctx context.Context) {
		f.Flush(ctx)
	})
	return f
}

func (f *Flusher) Start(ctx context.Context) {
	f.t.start(ctx)
}

func (f *Flusher) Stop(timeout time.Duration) {
	f.t.stop(timeout)
}

// Flush runs one round.
func (f *Flusher) Flush(ctx context.Context) error {
	err := f.reg.SyncAll(ctx)

	f.mu.Lock()
	f.runs++
	if err != nil {
		f.failed++
		f.lastError = err
	}
	f.mu.Unlock()

	if err != nil {
		logger.WarnCtx(ctx, "Periodic flush failed", logger.Err(err))
	}
	return err
}

// Stats returns the number of rounds run and failed, and the last error.
func (f *Flusher) Stats() (runs, failed int, lastErr error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs, f.failed, f.lastError
}
