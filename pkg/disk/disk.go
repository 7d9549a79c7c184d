package disk

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dittoblk/pkg/cache"
	"github.com/marmos91/dittoblk/pkg/driver"
)

// Disk is one registered physical device. All I/O methods require the caller
// to hold the disk lock (Lock/Unlock); Registry methods take it themselves.
type Disk struct {
	mu sync.Mutex

	name   string
	id     uuid.UUID
	drv    driver.Driver
	info   driver.Info
	caps   driver.Capabilities
	verify bool

	// Guarded by mu.
	flags    Flags
	stats    Stats
	cache    *cache.Cache
	cacheCfg cache.Config

	lastAccess atomic.Int64
	metrics    Metrics
	now        func() time.Time
}

// Info is a point-in-time description of a disk.
type Info struct {
	Name         string              `json:"name"`
	ID           string              `json:"id"`
	Driver       string              `json:"driver"`
	Class        driver.Class        `json:"class"`
	Removable    bool                `json:"removable"`
	SectorSize   uint32              `json:"sector_size"`
	Sectors      uint64              `json:"sectors"`
	Flags        Flags               `json:"flags"`
	Capabilities driver.Capabilities `json:"capabilities"`
	Cache        cache.Stats         `json:"cache"`
	LastAccess   time.Time           `json:"last_access"`
}

func newDisk(name string, drv driver.Driver, flags Flags, cacheCfg cache.Config, m Metrics, now func() time.Time) *Disk {
	cacheCfg.Name = name
	cacheCfg.SectorSize = drv.Info().SectorSize

	d := &Disk{
		name:     name,
		id:       uuid.New(),
		drv:      drv,
		info:     drv.Info(),
		caps:     driver.Probe(drv),
		verify:   cacheCfg.Verify,
		flags:    flags,
		cacheCfg: cacheCfg,
		metrics:  m,
		now:      now,
	}
	d.touch()
	return d
}

func (d *Disk) Name() string {
	return d.name
}

func (d *Disk) ID() uuid.UUID {
	return d.id
}

func (d *Disk) Class() driver.Class {
	return d.info.Class
}

func (d *Disk) Removable() bool {
	return d.info.Removable
}

func (d *Disk) SectorSize() uint32 {
	return d.info.SectorSize
}

func (d *Disk) Sectors() uint64 {
	return d.info.Sectors
}

func (d *Disk) Capabilities() driver.Capabilities {
	return d.caps
}

// Lock acquires the disk lock. It is not reentrant.
func (d *Disk) Lock() {
	d.mu.Lock()
}

func (d *Disk) Unlock() {
	d.mu.Unlock()
}

// LastAccess returns the time of the most recent request or motor change.
// It may be read without the lock.
func (d *Disk) LastAccess() time.Time {
	return time.Unix(0, d.lastAccess.Load())
}

func (d *Disk) touch() {
	d.lastAccess.Store(d.now().UnixNano())
}

// Flags returns the current flags. Requires the lock.
func (d *Disk) Flags() Flags {
	d.assertLocked("Flags")
	return d.flags
}

// Stats returns the accumulated I/O statistics. Requires the lock.
func (d *Disk) Stats() Stats {
	d.assertLocked("Stats")
	return d.stats
}

// Cache returns the sector cache, or nil before the first cached request.
// Requires the lock.
func (d *Disk) Cache() *cache.Cache {
	d.assertLocked("Cache")
	return d.cache
}

// Describe returns a snapshot of the disk. Requires the lock.
func (d *Disk) Describe() Info {
	d.assertLocked("Describe")
	info := Info{
		Name:         d.name,
		ID:           d.id.String(),
		Driver:       d.info.Driver,
		Class:        d.info.Class,
		Removable:    d.info.Removable,
		SectorSize:   d.info.SectorSize,
		Sectors:      d.info.Sectors,
		Flags:        d.flags,
		Capabilities: d.caps,
		LastAccess:   d.LastAccess(),
	}
	if d.cache != nil {
		info.Cache = d.cache.Stats()
	} else {
		info.Cache.MaxSize = d.cacheCfg.MaxSize
		if info.Cache.MaxSize == 0 {
			info.Cache.MaxSize = cache.DefaultMaxSize
		}
	}
	return info
}

// assertLocked panics in verify mode when the caller does not hold the lock.
// A successful TryLock proves nobody held it.
func (d *Disk) assertLocked(op string) {
	if !d.verify {
		return
	}
	if d.mu.TryLock() {
		d.mu.Unlock()
		panic(fmt.Sprintf("disk %s: %s called without holding the disk lock", d.name, op))
	}
}

func (d *Disk) ensureCache() (*cache.Cache, error) {
	if d.cache != nil {
		return d.cache, nil
	}
	c, err := cache.New(cacheDevice{d}, d.cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("disk %s: %w", d.name, err)
	}
	d.cache = c
	return c, nil
}

// cacheDevice is the cache's view of the disk: the direct path plus the
// read-only flag.
type cacheDevice struct {
	d *Disk
}

func (c cacheDevice) ReadDirect(ctx context.Context, start, count uint64, p []byte) error {
	return c.d.DirectReadWrite(ctx, start, count, p, ModeRead)
}

func (c cacheDevice) WriteDirect(ctx context.Context, start, count uint64, p []byte) error {
	return c.d.DirectReadWrite(ctx, start, count, p, ModeWrite)
}

func (c cacheDevice) ReadOnly() bool {
	return c.d.flags&FlagReadOnly != 0
}
