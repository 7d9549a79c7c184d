package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"

	"github.com/marmos91/dittoblk/internal/logger"
	"github.com/marmos91/dittoblk/pkg/bufpool"
	"github.com/marmos91/dittoblk/pkg/disk"
	"github.com/marmos91/dittoblk/pkg/driver"
	"github.com/marmos91/dittoblk/pkg/driver/image"
	"github.com/marmos91/dittoblk/pkg/driver/objdisk"
	"github.com/marmos91/dittoblk/pkg/driver/ramdisk"
	"github.com/marmos91/dittoblk/pkg/driver/throttle"
	"github.com/marmos91/dittoblk/pkg/metrics"
	"github.com/marmos91/dittoblk/pkg/store/extent"
)

// Runtime is the disk layer assembled from a Config.
type Runtime struct {
	Registry *disk.Registry

	// Stores holds the extent stores by configured name.
	Stores map[string]extent.Store

	storeTypes map[string]string
	closers    []io.Closer
}

// InitializeRegistry creates a fully configured disk registry from the
// provided configuration:
//  1. Opens every extent store in cfg.Stores
//  2. Builds the driver of each disk, wrapping it in a throttle when a rate
//     limit is set, and registers it
//  3. Adds the logical volumes declared on each disk
//
// Metrics collectors are created here, so metrics.InitRegistry must run
// first for them to be live. On error everything opened so far is closed.
//
//	cfg, _ := config.Load("config.yaml")
//	rt, err := config.InitializeRegistry(ctx, cfg)
//	if err != nil {
//		log.Fatalf("Failed to initialize registry: %v", err)
//	}
//	defer rt.Close(ctx)
func InitializeRegistry(ctx context.Context, cfg *Config) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}
	logger.Debug("Initializing disk registry from configuration")

	rt := &Runtime{
		Registry: disk.NewRegistry(disk.RegistryConfig{
			CacheMaxSize: cfg.Cache.MaxSize.Uint64(),
			Verify:       cfg.Cache.Verify,
			Allocator:    bufpool.NewAllocator(cfg.Cache.PoolLimit.Uint64(), nil),
			CacheMetrics: metrics.NewCacheMetrics(),
			Metrics:      metrics.NewDiskMetrics(),
		}),
		Stores:     make(map[string]extent.Store, len(cfg.Stores)),
		storeTypes: make(map[string]string, len(cfg.Stores)),
	}

	if err := rt.openStores(ctx, cfg); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to open stores: %w", err)
	}
	logger.Info("Opened extent stores", "count", len(rt.Stores))

	if err := rt.registerDisks(ctx, cfg); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register disks: %w", err)
	}
	logger.Info("Registered disks", "count", len(rt.Registry.Disks()), "volumes", len(rt.Registry.Volumes()))

	return rt, nil
}

func (rt *Runtime) openStores(ctx context.Context, cfg *Config) error {
	storeMetrics := metrics.NewStoreMetrics()
	for _, sc := range cfg.Stores {
		logger.Debug("Creating extent store", logger.StoreType(sc.Type), "name", sc.Name)

		store, err := CreateStore(ctx, sc, storeMetrics)
		if err != nil {
			return fmt.Errorf("store %q: %w", sc.Name, err)
		}
		rt.Stores[sc.Name] = store
		rt.storeTypes[sc.Name] = sc.Type
	}
	return nil
}

func (rt *Runtime) registerDisks(ctx context.Context, cfg *Config) error {
	for i, dc := range cfg.Disks {
		label := dc.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}

		drv, err := rt.createDriver(ctx, dc)
		if err != nil {
			return fmt.Errorf("disk %s: %w", label, err)
		}

		d, err := rt.Registry.Register(ctx, drv, disk.Options{
			Name:     dc.Name,
			ReadOnly: dc.ReadOnly,
			NoCache:  dc.NoCache,
		})
		if err != nil {
			return fmt.Errorf("disk %s: %w", label, err)
		}

		for _, vc := range dc.Volumes {
			if _, err := rt.Registry.AddVolume(vc.Name, d.Name(), vc.Start, vc.Count); err != nil {
				return fmt.Errorf("disk %s: %w", d.Name(), err)
			}
		}
	}
	return nil
}

// createDriver builds the driver for one disk. Closable drivers are tracked
// before any wrapping so Close reaches the real resource.
func (rt *Runtime) createDriver(ctx context.Context, dc DiskConfig) (driver.Driver, error) {
	class, err := driver.ParseClass(dc.Class)
	if err != nil {
		return nil, err
	}
	sectors := dc.Size.Sectors(dc.SectorSize)

	var drv driver.Driver
	switch dc.Driver {
	case "ram":
		drv, err = ramdisk.New(ramdisk.Options{
			Class:      class,
			Removable:  dc.Removable,
			SectorSize: dc.SectorSize,
			Sectors:    sectors,
		})
	case "image":
		drv, err = openImage(dc, class, sectors)
	case "object":
		drv, err = rt.openObject(ctx, dc, class, sectors)
	default:
		return nil, fmt.Errorf("unknown driver: %q", dc.Driver)
	}
	if err != nil {
		return nil, err
	}
	if c, ok := drv.(io.Closer); ok {
		rt.closers = append(rt.closers, c)
	}

	if dc.RateLimit.BytesPerSecond > 0 {
		return throttle.Wrap(drv, int(dc.RateLimit.BytesPerSecond), int(dc.RateLimit.Burst))
	}
	return drv, nil
}

func openImage(dc DiskConfig, class driver.Class, sectors uint64) (driver.Driver, error) {
	if dc.Image.Create {
		if _, err := os.Stat(dc.Image.Path); errors.Is(err, os.ErrNotExist) {
			if err := image.Create(dc.Image.Path, dc.SectorSize, sectors); err != nil {
				return nil, err
			}
			logger.Info("Created disk image", "path", dc.Image.Path, logger.Count(sectors))
		}
	}
	return image.Open(image.Options{
		Path:       dc.Image.Path,
		Class:      class,
		Removable:  dc.Removable,
		SectorSize: dc.SectorSize,
		ReadOnly:   dc.ReadOnly,
	})
}

func (rt *Runtime) openObject(ctx context.Context, dc DiskConfig, class driver.Class, sectors uint64) (driver.Driver, error) {
	store, ok := rt.Stores[dc.Object.Store]
	if !ok {
		return nil, fmt.Errorf("unknown store %q", dc.Object.Store)
	}
	volume := dc.Object.Volume
	if volume == "" {
		volume = dc.Name
	}
	extentSize := dc.Object.ExtentSize
	if extentSize == 0 {
		extentSize = DefaultExtentSize
	}
	return objdisk.Open(ctx, store, objdisk.Options{
		Volume:        volume,
		Class:         class,
		Removable:     dc.Removable,
		SectorSize:    dc.SectorSize,
		Sectors:       sectors,
		ExtentSectors: uint32(extentSize.Sectors(dc.SectorSize)),
		ReadOnly:      dc.ReadOnly,
		StoreType:     rt.storeTypes[dc.Object.Store],
	})
}

// StoreType returns the configured type of the named store, or "" when
// there is no such store.
func (rt *Runtime) StoreType(name string) string {
	return rt.storeTypes[name]
}

// Close shuts the registry down, then releases drivers and stores. Errors
// from every step are combined.
func (rt *Runtime) Close(ctx context.Context) error {
	err := rt.Registry.Shutdown(ctx)
	for _, c := range rt.closers {
		err = multierr.Append(err, c.Close())
	}
	for name, s := range rt.Stores {
		if cerr := s.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close store %q: %w", name, cerr))
		}
	}
	rt.closers = nil
	return err
}
