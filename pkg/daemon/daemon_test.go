package daemon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoblk/pkg/disk"
	"github.com/marmos91/dittoblk/pkg/driver"
	"github.com/marmos91/dittoblk/pkg/driver/ramdisk"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setup(t *testing.T, clock *manualClock) (*disk.Registry, *ramdisk.Disk, *ramdisk.Disk) {
	t.Helper()
	reg := disk.NewRegistry(disk.RegistryConfig{Verify: true, Clock: clock.Now})

	mk := func(class driver.Class, removable bool) *ramdisk.Disk {
		rd, err := ramdisk.New(ramdisk.Options{Class: class, Removable: removable, SectorSize: 512, Sectors: 32})
		require.NoError(t, err)
		_, err = reg.Register(context.Background(), rd, disk.Options{})
		require.NoError(t, err)
		return rd
	}
	return reg, mk(driver.ClassFloppy, true), mk(driver.ClassCDROM, true)
}

func TestIdleSweep(t *testing.T) {
	ctx := context.Background()
	clock := &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	reg, fd, cd := setup(t, clock)

	_, err := reg.ReadSectors(ctx, "fd0", 0, 1)
	require.NoError(t, err)
	_, err = reg.ReadSectors(ctx, "cd0", 0, 1)
	require.NoError(t, err)
	require.True(t, fd.MotorOn())
	require.True(t, cd.MotorOn())

	idle := NewIdle(reg, IdleConfig{Clock: clock.Now})

	clock.Advance(time.Second)
	assert.Zero(t, idle.Sweep(ctx), "not idle long enough")
	assert.True(t, fd.MotorOn())

	clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, 1, idle.Sweep(ctx))
	assert.False(t, fd.MotorOn())
	assert.True(t, cd.MotorOn(), "only floppy drives are managed by default")

	clock.Advance(5 * time.Second)
	assert.Zero(t, idle.Sweep(ctx), "motor already off")
}

func TestIdleClasses(t *testing.T) {
	ctx := context.Background()
	clock := &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	reg, _, cd := setup(t, clock)

	_, err := reg.ReadSectors(ctx, "cd0", 0, 1)
	require.NoError(t, err)

	idle := NewIdle(reg, IdleConfig{
		IdleTimeout: time.Minute,
		Classes:     []driver.Class{driver.ClassFloppy, driver.ClassCDROM},
		Clock:       clock.Now,
	})
	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, idle.Sweep(ctx))
	assert.False(t, cd.MotorOn())
}

// slowDisk blocks reads until released.
type slowDisk struct {
	*ramdisk.Disk
	entered chan struct{}
	release chan struct{}
}

func (d *slowDisk) ReadSectors(ctx context.Context, start, count uint64, p []byte) error {
	close(d.entered)
	<-d.release
	return d.Disk.ReadSectors(ctx, start, count, p)
}

func TestIdleSweepRechecksAfterTransfer(t *testing.T) {
	ctx := context.Background()
	clock := &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	reg := disk.NewRegistry(disk.RegistryConfig{Verify: true, Clock: clock.Now})

	rd, err := ramdisk.New(ramdisk.Options{Class: driver.ClassFloppy, Removable: true, SectorSize: 512, Sectors: 32})
	require.NoError(t, err)
	slow := &slowDisk{Disk: rd, entered: make(chan struct{}), release: make(chan struct{})}
	_, err = reg.Register(ctx, slow, disk.Options{NoCache: true})
	require.NoError(t, err)

	readDone := make(chan error, 1)
	go func() {
		_, err := reg.ReadSectors(ctx, "fd0", 0, 1)
		readDone <- err
	}()
	<-slow.entered
	clock.Advance(time.Minute)

	idle := NewIdle(reg, IdleConfig{IdleTimeout: time.Second, Clock: clock.Now})
	swept := make(chan int, 1)
	go func() { swept <- idle.Sweep(ctx) }()
	time.Sleep(20 * time.Millisecond)
	close(slow.release)

	require.NoError(t, <-readDone)
	assert.Zero(t, <-swept, "drive was in use while the sweep waited")
	assert.True(t, rd.MotorOn())
}

func TestIdleStartStop(t *testing.T) {
	clock := &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	reg, _, _ := setup(t, clock)

	idle := NewIdle(reg, IdleConfig{PollInterval: time.Millisecond, Clock: clock.Now})
	idle.Stop(time.Second)

	idle.Start(context.Background())
	idle.Start(context.Background())
	time.Sleep(5 * time.Millisecond)
	idle.Stop(time.Second)
	idle.Stop(time.Second)
}

func TestFlusher(t *testing.T) {
	ctx := context.Background()
	clock := &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	reg, fd, _ := setup(t, clock)

	require.NoError(t, reg.WriteSectors(ctx, "fd0", 2, 1, make([]byte, 512)))
	f := NewFlusher(reg, time.Hour)

	require.NoError(t, f.Flush(ctx))
	assert.Equal(t, 1, fd.CountOps(ramdisk.OpWrite))

	fd.FailFlush(errors.New("no flush"))
	require.Error(t, f.Flush(ctx))

	runs, failed, lastErr := f.Stats()
	assert.Equal(t, 2, runs)
	assert.Equal(t, 1, failed)
	assert.Error(t, lastErr)
}

func TestFlusherRunsPeriodically(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	reg, _, _ := setup(t, clock)

	f := NewFlusher(reg, time.Millisecond)
	f.Start(ctx)
	defer f.Stop(time.Second)

	assert.Eventually(t, func() bool {
		runs, _, _ := f.Stats()
		return runs >= 2
	}, time.Second, 5*time.Millisecond)
}
