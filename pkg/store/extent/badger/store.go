// Package badger stores extents in an embedded BadgerDB.
package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/marmos91/dittoblk/pkg/store/extent"
)

// Config configures the Badger extent store.
type Config struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string `mapstructure:"dir"`

	// InMemory keeps the database entirely in RAM.
	InMemory bool `mapstructure:"in_memory"`

	// SyncWrites fsyncs every commit.
	SyncWrites bool `mapstructure:"sync_writes"`
}

// Store keeps each extent as one key/value pair under extent.Key.
type Store struct {
	db *badger.DB

	mu     sync.RWMutex
	closed bool
}

// New opens the database described by cfg.
func New(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Dir).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return extent.ErrStoreClosed
	}
	return nil
}

func (s *Store) WriteExtent(ctx context.Context, volume string, idx uint64, data []byte) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := extent.ValidateVolume(volume); err != nil {
		return err
	}

	// Badger keeps a reference to the value until commit.
	val := make([]byte, len(data))
	copy(val, data)

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(extent.Key(volume, idx)), val)
	})
	if err != nil {
		return fmt.Errorf("write extent: %w", err)
	}
	return nil
}

func (s *Store) ReadExtent(ctx context.Context, volume string, idx uint64) ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(extent.Key(volume, idx)))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, extent.ErrExtentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read extent: %w", err)
	}
	return data, nil
}

func (s *Store) DeleteExtent(ctx context.Context, volume string, idx uint64) error {
	if err := s.check(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(extent.Key(volume, idx)))
	})
	if err != nil {
		return fmt.Errorf("delete extent: %w", err)
	}
	return nil
}

func (s *Store) ListExtents(ctx context.Context, volume string) ([]uint64, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var out []uint64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(extent.Prefix(volume))

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, idx, err := extent.ParseKey(string(it.Item().Key()))
			if err != nil {
				continue
			}
			out = append(out, idx)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list extents: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteVolume(ctx context.Context, volume string) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := extent.ValidateVolume(volume); err != nil {
		return err
	}
	if err := s.db.DropPrefix([]byte(extent.Prefix(volume))); err != nil {
		return fmt.Errorf("delete volume: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return extent.ErrStoreClosed
	}
	return nil
}

// CacheStats is a snapshot of Badger's internal cache counters.
type CacheStats struct {
	BlockHits   uint64
	BlockMisses uint64
	IndexHits   uint64
	IndexMisses uint64
	LSMBytes    int64
	VlogBytes   int64
}

// CacheStats returns the current cache counters and on-disk sizes. Counters
// stay zero when the corresponding cache is disabled.
func (s *Store) CacheStats() CacheStats {
	block := s.db.BlockCacheMetrics()
	index := s.db.IndexCacheMetrics()
	lsm, vlog := s.db.Size()
	return CacheStats{
		BlockHits:   block.Hits(),
		BlockMisses: block.Misses(),
		IndexHits:   index.Hits(),
		IndexMisses: index.Misses(),
		LSMBytes:    lsm,
		VlogBytes:   vlog,
	}
}

var _ extent.Store = (*Store)(nil)
