// Package fs stores extents as files, one directory per volume.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/marmos91/dittoblk/pkg/store/extent"
)

// Store keeps extent idx of volume v in {root}/{v}/{idx as 16 hex digits}.
type Store struct {
	root string

	mu     sync.RWMutex
	closed bool
}

// New opens or creates a store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create extent directory: %w", err)
	}
	return &Store{root: dir}, nil
}

func (s *Store) path(volume string, idx uint64) string {
	return filepath.Join(s.root, volume, fmt.Sprintf("%016x", idx))
}

func (s *Store) check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return extent.ErrStoreClosed
	}
	return nil
}

// WriteExtent writes to a temporary file and renames it into place so a
// crash never leaves a torn extent.
func (s *Store) WriteExtent(ctx context.Context, volume string, idx uint64, data []byte) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := extent.ValidateVolume(volume); err != nil {
		return err
	}

	dir := filepath.Join(s.root, volume)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create volume directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".extent-*")
	if err != nil {
		return fmt.Errorf("create temp extent: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write extent: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync extent: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close extent: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(volume, idx)); err != nil {
		return fmt.Errorf("commit extent: %w", err)
	}
	return nil
}

func (s *Store) ReadExtent(ctx context.Context, volume string, idx uint64) ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if err := extent.ValidateVolume(volume); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(volume, idx))
	if errors.Is(err, fs.ErrNotExist) {
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
	if err := extent.ValidateVolume(volume); err != nil {
		return err
	}

	err := os.Remove(s.path(volume, idx))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete extent: %w", err)
	}
	return nil
}

func (s *Store) ListExtents(ctx context.Context, volume string) ([]uint64, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if err := extent.ValidateVolume(volume); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.root, volume))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list extents: %w", err)
	}

	out := make([]uint64, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || len(e.Name()) != 16 {
			continue
		}
		idx, err := strconv.ParseUint(e.Name(), 16, 64)
		if err != nil {
			continue
		}
		out = append(out, idx)
	}
	slices.Sort(out)
	return out, nil
}

func (s *Store) DeleteVolume(ctx context.Context, volume string) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := extent.ValidateVolume(volume); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.root, volume)); err != nil {
		return fmt.Errorf("delete volume: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// HealthCheck verifies the root directory is still there.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("extent directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("extent directory %s is not a directory", s.root)
	}
	return nil
}

var _ extent.Store = (*Store)(nil)
