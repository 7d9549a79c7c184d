package disk

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/marmos91/dittoblk/internal/logger"
	"github.com/marmos91/dittoblk/pkg/bufpool"
	"github.com/marmos91/dittoblk/pkg/cache"
	"github.com/marmos91/dittoblk/pkg/driver"
)

// RegistryConfig holds settings shared by every registered disk.
type RegistryConfig struct {
	// CacheMaxSize is the per-disk cache budget in bytes. Zero selects
	// cache.DefaultMaxSize.
	CacheMaxSize uint64

	// Verify enables cache invariant checks and lock assertions.
	Verify bool

	// Allocator bounds cache payload memory across all disks. Nil selects an
	// unlimited allocator.
	Allocator *bufpool.Allocator

	CacheMetrics cache.Metrics
	Metrics      Metrics

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Options describes a disk at registration.
type Options struct {
	// Name overrides the generated class-prefixed name.
	Name string

	ReadOnly bool
	NoCache  bool
}

// Volume is a named sector window onto a physical disk.
type Volume struct {
	Name   string `json:"name"`
	Parent string `json:"parent"`
	Start  uint64 `json:"start"`
	Count  uint64 `json:"count"`

	disk *Disk
}

// Registry owns the registered disks and logical volumes and is the entry
// point for all upward operations.
type Registry struct {
	cfg RegistryConfig

	mu       sync.RWMutex
	disks    []*Disk
	byName   map[string]*Disk
	volumes  []*Volume
	counters map[driver.Class]int
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Allocator == nil {
		cfg.Allocator = bufpool.NewAllocator(0, nil)
	}
	return &Registry{
		cfg:      cfg,
		byName:   make(map[string]*Disk),
		counters: make(map[driver.Class]int),
	}
}

// Register adds a physical disk backed by drv and returns it. Unless
// opts.Name is set the disk is named after its class, fd0, fd1, hd0, ...
func (r *Registry) Register(ctx context.Context, drv driver.Driver, opts Options) (*Disk, error) {
	info := drv.Info()
	if info.SectorSize == 0 || info.Sectors == 0 {
		return nil, fmt.Errorf("register %s: empty geometry: %w", info.Driver, ErrInvalidRange)
	}

	r.mu.Lock()
	name := opts.Name
	if name == "" {
		name = fmt.Sprintf("%s%d", info.Class.Prefix(), r.counters[info.Class])
	}
	if r.nameTaken(name) {
		r.mu.Unlock()
		return nil, fmt.Errorf("register %s: %w", name, ErrExists)
	}
	if opts.Name == "" {
		r.counters[info.Class]++
	}

	var flags Flags
	if opts.ReadOnly {
		flags |= FlagReadOnly
	}
	if opts.NoCache {
		flags |= FlagNoCache
	}
	caps := driver.Probe(drv)
	if info.Removable && caps.Motor {
		// Motor state is unknown until we stop it below.
		flags |= FlagMotorOn
	}

	d := newDisk(name, drv, flags, cache.Config{
		MaxSize:   r.cfg.CacheMaxSize,
		Verify:    r.cfg.Verify,
		Allocator: r.cfg.Allocator,
		Metrics:   r.cfg.CacheMetrics,
		Clock:     r.cfg.Clock,
	}, r.cfg.Metrics, r.cfg.Clock)

	r.disks = append(r.disks, d)
	r.byName[name] = d
	r.mu.Unlock()

	d.Lock()
	err := d.MotorOff(ctx)
	d.Unlock()
	if err != nil {
		logger.WarnCtx(ctx, "Failed to stop motor at registration", logger.Disk(name), logger.Err(err))
	}

	logger.InfoCtx(ctx, "Disk registered",
		logger.Disk(name),
		logger.DiskID(d.id.String()),
		logger.DiskClass(info.Class.String()),
		logger.Driver(info.Driver),
		"sectors", info.Sectors,
		"sector_size", info.SectorSize,
		"flags", flags.String(),
	)
	return d, nil
}

func (r *Registry) nameTaken(name string) bool {
	if _, ok := r.byName[name]; ok {
		return true
	}
	return slices.ContainsFunc(r.volumes, func(v *Volume) bool { return v.Name == name })
}

// AddVolume defines a logical volume of count sectors starting at start on
// the physical disk parent.
func (r *Registry) AddVolume(name, parent string, start, count uint64) (*Volume, error) {
	if name == "" || count == 0 {
		return nil, fmt.Errorf("add volume %q: %w", name, ErrInvalidRange)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byName[parent]
	if !ok {
		return nil, fmt.Errorf("add volume %s: parent %s: %w", name, parent, ErrNoSuchDisk)
	}
	if start >= d.info.Sectors || count > d.info.Sectors-start {
		return nil, fmt.Errorf("add volume %s: %d+%d on %s: %w", name, start, count, parent, ErrBounds)
	}
	if r.nameTaken(name) {
		return nil, fmt.Errorf("add volume %s: %w", name, ErrExists)
	}

	v := &Volume{Name: name, Parent: parent, Start: start, Count: count, disk: d}
	r.volumes = append(r.volumes, v)
	logger.Info("Volume added", logger.Volume(name), logger.Disk(parent), logger.Sector(start), logger.Count(count))
	return v, nil
}

// Remove syncs and unregisters a physical disk together with its volumes.
// The disk is removed even if the final sync fails; that error is returned.
func (r *Registry) Remove(ctx context.Context, name string) error {
	r.mu.Lock()
	d, ok := r.byName[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("remove %s: %w", name, ErrNoSuchDisk)
	}
	delete(r.byName, name)
	r.disks = slices.DeleteFunc(r.disks, func(x *Disk) bool { return x == d })
	r.volumes = slices.DeleteFunc(r.volumes, func(v *Volume) bool { return v.disk == d })
	r.mu.Unlock()

	d.Lock()
	err := d.sync(ctx)
	if d.cache != nil {
		if ierr := d.cache.Invalidate(ctx); ierr != nil && err == nil {
			err = ierr
		}
	}
	d.Unlock()

	logger.InfoCtx(ctx, "Disk removed", logger.Disk(name))
	return err
}

// Get returns a physical disk by name.
func (r *Registry) Get(name string) (*Disk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNoSuchDisk)
	}
	return d, nil
}

// Disks returns the physical disks in registration order.
func (r *Registry) Disks() []*Disk {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.disks)
}

// Volumes returns the logical volumes in creation order.
func (r *Registry) Volumes() []Volume {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Volume, len(r.volumes))
	for i, v := range r.volumes {
		out[i] = *v
	}
	return out
}

// List describes every physical disk.
func (r *Registry) List() []Info {
	disks := r.Disks()
	out := make([]Info, 0, len(disks))
	for _, d := range disks {
		d.Lock()
		out = append(out, d.Describe())
		d.Unlock()
	}
	return out
}

// target is a resolved name: a disk plus the window a request may touch.
type target struct {
	disk   *Disk
	offset uint64
	limit  uint64
}

// resolve looks name up among physical disks first, then logical volumes.
func (r *Registry) resolve(name string) (target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.byName[name]; ok {
		return target{disk: d, limit: d.info.Sectors}, nil
	}
	for _, v := range r.volumes {
		if v.Name == name {
			return target{disk: v.disk, offset: v.Start, limit: v.Count}, nil
		}
	}
	return target{}, fmt.Errorf("%s: %w", name, ErrNoSuchDisk)
}

// translate maps a request onto the physical disk.
func (t target) translate(name string, start, count uint64) (uint64, error) {
	if count == 0 {
		return 0, fmt.Errorf("%s: zero sectors: %w", name, ErrInvalidRange)
	}
	if start >= t.limit || count > t.limit-start {
		return 0, fmt.Errorf("%s: sectors %d+%d beyond %d: %w", name, start, count, t.limit, ErrBounds)
	}
	return t.offset + start, nil
}
