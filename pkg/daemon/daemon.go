// Package daemon runs the background housekeeping of the disk layer: the
// idle daemon that stops removable drive motors, and the optional periodic
// flusher that writes dirty sectors back.
package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/dittoblk/internal/logger"
)

// ticker runs fn every interval on its own goroutine until stopped.
type ticker struct {
	name     string
	interval time.Duration
	fn       func(context.Context)

	mu        sync.Mutex
	started   bool
	stopped   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func newTicker(name string, interval time.Duration, fn func(context.Context)) *ticker {
	return &ticker{
		name:      name,
		interval:  interval,
		fn:        fn,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (t *ticker) start(ctx context.Context) {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()

	logger.Info("Starting "+t.name, "interval", t.interval.String())

	go func() {
		defer close(t.stoppedCh)

		tk := time.NewTicker(t.interval)
		defer tk.Stop()

		for {
			select {
			case <-t.stopCh:
				return
			case <-ctx.Done():
				return
			case <-tk.C:
				t.fn(ctx)
			}
		}
	}()
}

// stop signals the goroutine and waits up to timeout for the current round
// to finish.
func (t *ticker) stop(timeout time.Duration) {
	t.mu.Lock()
	if !t.started || t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.mu.Unlock()

	close(t.stopCh)

	select {
	case <-t.stoppedCh:
		logger.Info(t.name + " stopped")
	case <-time.After(timeout):
		logger.Warn(t.name+" stop timed out", "timeout", timeout.String())
	}
}
