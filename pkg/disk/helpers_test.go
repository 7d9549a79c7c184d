package disk

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoblk/pkg/driver"
	"github.com/marmos91/dittoblk/pkg/driver/ramdisk"
)

const (
	testSectorSize = 512
	testSectors    = 64
	testBudget     = 8 * testSectorSize
)

// stepClock advances one millisecond per call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(RegistryConfig{
		CacheMaxSize: testBudget,
		Verify:       true,
		Clock:        newStepClock().Now,
	})
}

func newRAM(t *testing.T, class driver.Class, removable bool) *ramdisk.Disk {
	t.Helper()
	rd, err := ramdisk.New(ramdisk.Options{
		Class:      class,
		Removable:  removable,
		SectorSize: testSectorSize,
		Sectors:    testSectors,
	})
	require.NoError(t, err)
	return rd
}

func register(t *testing.T, r *Registry, rd *ramdisk.Disk, opts Options) *Disk {
	t.Helper()
	d, err := r.Register(context.Background(), rd, opts)
	require.NoError(t, err)
	return d
}

func pattern(fill byte, count uint64) []byte {
	return bytes.Repeat([]byte{fill}, int(count*testSectorSize))
}
