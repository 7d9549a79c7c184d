// Package memory provides an in-memory extent store.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/marmos91/dittoblk/pkg/store/extent"
)

// Store keeps extents in a map keyed by extent.Key.
type Store struct {
	mu      sync.RWMutex
	extents map[string][]byte
	closed  bool
}

// New creates an empty in-memory extent store.
func New() *Store {
	return &Store{
		extents: make(map[string][]byte),
	}
}

func (s *Store) WriteExtent(ctx context.Context, volume string, idx uint64, data []byte) error {
	if err := extent.ValidateVolume(volume); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return extent.ErrStoreClosed
	}
	s.extents[extent.Key(volume, idx)] = slices.Clone(data)
	return nil
}

func (s *Store) ReadExtent(ctx context.Context, volume string, idx uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, extent.ErrStoreClosed
	}
	data, ok := s.extents[extent.Key(volume, idx)]
	if !ok {
		return nil, extent.ErrExtentNotFound
	}
	return slices.Clone(data), nil
}

func (s *Store) DeleteExtent(ctx context.Context, volume string, idx uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return extent.ErrStoreClosed
	}
	delete(s.extents, extent.Key(volume, idx))
	return nil
}

func (s *Store) ListExtents(ctx context.Context, volume string) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, extent.ErrStoreClosed
	}

	prefix := extent.Prefix(volume)
	var out []uint64
	for key := range s.extents {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		_, idx, err := extent.ParseKey(key)
		if err != nil {
			continue
		}
		out = append(out, idx)
	}
	slices.Sort(out)
	return out, nil
}

func (s *Store) DeleteVolume(ctx context.Context, volume string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return extent.ErrStoreClosed
	}
	prefix := extent.Prefix(volume)
	for key := range s.extents {
		if strings.HasPrefix(key, prefix) {
			delete(s.extents, key)
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.extents = nil
	return nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return extent.ErrStoreClosed
	}
	return nil
}

// Len returns the number of stored extents across all volumes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.extents)
}

var _ extent.Store = (*Store)(nil)
