package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	promstore "github.com/marmos91/dittoblk/pkg/metrics/prometheus"
	"github.com/marmos91/dittoblk/pkg/store/extent"
	"github.com/marmos91/dittoblk/pkg/store/extent/badger"
	"github.com/marmos91/dittoblk/pkg/store/extent/fs"
	"github.com/marmos91/dittoblk/pkg/store/extent/memory"
	"github.com/marmos91/dittoblk/pkg/store/extent/s3"
)

// FSStoreConfig holds the options of a filesystem extent store.
type FSStoreConfig struct {
	// Path is the root directory; one subdirectory per volume.
	Path string `mapstructure:"path"`
}

// CreateStore creates an extent store from configuration. The returned store
// reports to m when m is non-nil.
func CreateStore(ctx context.Context, cfg StoreConfig, m extent.Metrics) (extent.Store, error) {
	var (
		store extent.Store
		err   error
	)
	switch cfg.Type {
	case "memory":
		store = memory.New()
	case "fs":
		store, err = createFSStore(cfg)
	case "badger":
		store, err = createBadgerStore(cfg)
	case "s3":
		store, err = createS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return extent.Instrument(store, cfg.Type, m), nil
}

// createFSStore creates a filesystem-backed extent store.
func createFSStore(cfg StoreConfig) (extent.Store, error) {
	var fsCfg FSStoreConfig
	if err := mapstructure.Decode(cfg.FS, &fsCfg); err != nil {
		return nil, fmt.Errorf("invalid fs config: %w", err)
	}
	if fsCfg.Path == "" {
		return nil, fmt.Errorf("fs store requires path to be set")
	}
	return fs.New(fsCfg.Path)
}

// createBadgerStore opens a BadgerDB extent store and exports its cache
// counters when metrics are enabled.
func createBadgerStore(cfg StoreConfig) (extent.Store, error) {
	var badgerCfg badger.Config
	if err := mapstructure.Decode(cfg.Badger, &badgerCfg); err != nil {
		return nil, fmt.Errorf("invalid badger config: %w", err)
	}
	if badgerCfg.Dir == "" && !badgerCfg.InMemory {
		return nil, fmt.Errorf("badger store requires dir or in_memory to be set")
	}

	store, err := badger.New(badgerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	if err := promstore.RegisterBadgerStore(cfg.Name, store); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// createS3Store creates an S3-backed extent store.
func createS3Store(ctx context.Context, cfg StoreConfig) (extent.Store, error) {
	var s3Cfg s3.Config
	if err := mapstructure.Decode(cfg.S3, &s3Cfg); err != nil {
		return nil, fmt.Errorf("invalid s3 config: %w", err)
	}
	if s3Cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 store requires bucket to be set")
	}
	return s3.NewFromConfig(ctx, s3Cfg)
}
