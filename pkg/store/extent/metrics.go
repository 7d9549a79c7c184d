package extent

import (
	"context"
	"errors"
	"time"
)

// Metrics receives extent store events. A nil Metrics disables collection.
type Metrics interface {
	// ObserveOperation records one store call. bytes is the payload size for
	// reads and writes and zero otherwise.
	ObserveOperation(storeType, operation string, bytes int, elapsed time.Duration, err error)
}

// Operation names reported to Metrics.
const (
	OpRead         = "read"
	OpWrite        = "write"
	OpDelete       = "delete"
	OpList         = "list"
	OpDeleteVolume = "delete_volume"
	OpHealthCheck  = "health_check"
)

// Instrument wraps s so that every call is reported to m. It returns s
// unchanged when m is nil.
func Instrument(s Store, storeType string, m Metrics) Store {
	if m == nil {
		return s
	}
	return &instrumented{Store: s, storeType: storeType, m: m, now: time.Now}
}

type instrumented struct {
	Store
	storeType string
	m         Metrics
	now       func() time.Time
}

func (s *instrumented) observe(op string, start time.Time, bytes int, err error) {
	// A missing extent is a normal outcome for sparse volumes.
	if errors.Is(err, ErrExtentNotFound) {
		err = nil
	}
	s.m.ObserveOperation(s.storeType, op, bytes, s.now().Sub(start), err)
}

func (s *instrumented) ReadExtent(ctx context.Context, volume string, idx uint64) ([]byte, error) {
	start := s.now()
	data, err := s.Store.ReadExtent(ctx, volume, idx)
	s.observe(OpRead, start, len(data), err)
	return data, err
}

func (s *instrumented) WriteExtent(ctx context.Context, volume string, idx uint64, data []byte) error {
	start := s.now()
	err := s.Store.WriteExtent(ctx, volume, idx, data)
	s.observe(OpWrite, start, len(data), err)
	return err
}

func (s *instrumented) DeleteExtent(ctx context.Context, volume string, idx uint64) error {
	start := s.now()
	err := s.Store.DeleteExtent(ctx, volume, idx)
	s.observe(OpDelete, start, 0, err)
	return err
}

func (s *instrumented) ListExtents(ctx context.Context, volume string) ([]uint64, error) {
	start := s.now()
	idx, err := s.Store.ListExtents(ctx, volume)
	s.observe(OpList, start, 0, err)
	return idx, err
}

func (s *instrumented) DeleteVolume(ctx context.Context, volume string) error {
	start := s.now()
	err := s.Store.DeleteVolume(ctx, volume)
	s.observe(OpDeleteVolume, start, 0, err)
	return err
}

func (s *instrumented) HealthCheck(ctx context.Context) error {
	start := s.now()
	err := s.Store.HealthCheck(ctx)
	s.observe(OpHealthCheck, start, 0, err)
	return err
}
