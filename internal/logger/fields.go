package logger

import (
	"log/slog"
)

// Standard field keys for structured logging. Use these consistently so log
// aggregation can query across the cache, drivers, and the extent stores.
const (
	// Tracing
	KeyTraceID   = "trace_id"
	KeySpanID    = "span_id"
	KeyRequestID = "request_id"

	// Disk identity
	KeyDisk       = "disk"        // Disk or volume name (fd0, hd0, vol0)
	KeyDiskID     = "disk_id"     // Stable UUID assigned at registration
	KeyDiskClass  = "disk_class"  // floppy, cdrom, scsi, hard, ram
	KeyDriver     = "driver"      // Driver name
	KeyFlags      = "flags"       // Disk flags bitmask rendered as text
	KeySectorSize = "sector_size" // Bytes per sector

	// Sector I/O
	KeyOperation = "operation" // read, write, sync, invalidate, prune
	KeySector    = "sector"    // First sector of a request or buffer
	KeyCount     = "count"     // Sector count
	KeyBytes     = "bytes"     // Byte count transferred
	KeyDirect    = "direct"    // Request bypassed the cache

	// Cache
	KeyCacheSize   = "cache_size"   // Bytes currently cached
	KeyCacheLimit  = "cache_limit"  // Cache budget in bytes
	KeyBuffers     = "buffers"      // Buffer count
	KeyDirty       = "dirty"        // Dirty buffer count
	KeyEvicted     = "evicted"      // Buffers evicted by a prune
	KeyIdleSeconds = "idle_seconds" // Seconds since last access

	// Extent store
	KeyStoreType = "store_type" // memory, fs, badger, s3
	KeyVolume    = "volume"     // Volume identifier inside a store
	KeyExtent    = "extent"     // Extent index
	KeyBucket    = "bucket"
	KeyKey       = "key"
	KeyPath      = "path"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyAttempt    = "attempt"
	KeyPass       = "pass" // Erase pass number
)

// Disk returns a slog.Attr for a disk name
func Disk(name string) slog.Attr {
	return slog.String(KeyDisk, name)
}

// DiskID returns a slog.Attr for a disk UUID
func DiskID(id string) slog.Attr {
	return slog.String(KeyDiskID, id)
}

// DiskClass returns a slog.Attr for a disk class
func DiskClass(class string) slog.Attr {
	return slog.String(KeyDiskClass, class)
}

// Driver returns a slog.Attr for a driver name
func Driver(name string) slog.Attr {
	return slog.String(KeyDriver, name)
}

// Operation returns a slog.Attr for the operation name
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Sector returns a slog.Attr for a sector number
func Sector(s uint64) slog.Attr {
	return slog.Uint64(KeySector, s)
}

// Count returns a slog.Attr for a sector count
func Count(c uint64) slog.Attr {
	return slog.Uint64(KeyCount, c)
}

// Bytes returns a slog.Attr for a byte count
func Bytes(n uint64) slog.Attr {
	return slog.Uint64(KeyBytes, n)
}

// CacheSize returns a slog.Attr for the current cache size
func CacheSize(n uint64) slog.Attr {
	return slog.Uint64(KeyCacheSize, n)
}

// Dirty returns a slog.Attr for the dirty buffer count
func Dirty(n int) slog.Attr {
	return slog.Int(KeyDirty, n)
}

// StoreType returns a slog.Attr for the extent store type
func StoreType(t string) slog.Attr {
	return slog.String(KeyStoreType, t)
}

// Volume returns a slog.Attr for a volume identifier
func Volume(v string) slog.Attr {
	return slog.String(KeyVolume, v)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error. A nil error yields an empty attr,
// which handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
