// Package extent defines storage for disk images split into fixed-size
// extents. An extent is a run of sectors persisted as one object; a volume is
// the set of extents belonging to one disk.
package extent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrExtentNotFound is returned when a requested extent was never
	// written or has been deleted.
	ErrExtentNotFound = errors.New("extent not found")

	// ErrStoreClosed is returned when operations are attempted on a closed
	// store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrInvalidVolume is returned for empty or malformed volume names.
	ErrInvalidVolume = errors.New("invalid volume name")
)

// Store persists extents. Implementations must be safe for concurrent use.
type Store interface {
	// ReadExtent returns the data of one extent, or ErrExtentNotFound.
	ReadExtent(ctx context.Context, volume string, idx uint64) ([]byte, error)

	// WriteExtent stores data as extent idx, replacing any previous content.
	WriteExtent(ctx context.Context, volume string, idx uint64, data []byte) error

	// DeleteExtent removes one extent. Missing extents are not an error.
	DeleteExtent(ctx context.Context, volume string, idx uint64) error

	// ListExtents returns the indexes of every stored extent in ascending
	// order.
	ListExtents(ctx context.Context, volume string) ([]uint64, error)

	// DeleteVolume removes every extent of a volume.
	DeleteVolume(ctx context.Context, volume string) error

	// Close releases the store's resources.
	Close() error

	// HealthCheck returns nil when the backend is reachable.
	HealthCheck(ctx context.Context) error
}

// Key returns the object key of an extent: "{volume}/{idx as 16 hex digits}".
// Fixed-width indexes keep lexical and numeric order identical.
func Key(volume string, idx uint64) string {
	return fmt.Sprintf("%s/%016x", volume, idx)
}

// Prefix returns the key prefix shared by all extents of a volume.
func Prefix(volume string) string {
	return volume + "/"
}

// ParseKey splits a key produced by Key.
func ParseKey(key string) (volume string, idx uint64, err error) {
	i := strings.LastIndexByte(key, '/')
	if i <= 0 || len(key)-i-1 != 16 {
		return "", 0, fmt.Errorf("malformed extent key %q", key)
	}
	idx, err = strconv.ParseUint(key[i+1:], 16, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed extent key %q: %w", key, err)
	}
	return key[:i], idx, nil
}

// ValidateVolume rejects names that cannot be used as a key prefix.
func ValidateVolume(volume string) error {
	if volume == "" || strings.ContainsAny(volume, "/\\") || volume == "." || volume == ".." {
		return fmt.Errorf("%q: %w", volume, ErrInvalidVolume)
	}
	return nil
}
