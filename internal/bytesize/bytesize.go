// Package bytesize parses and formats the human-readable sizes used in
// configuration files (cache budgets, disk capacities, throttle rates).
package bytesize

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// ByteSize represents a size in bytes that can be unmarshaled from human-readable
// strings like "1Mi", "64KiB", "1.44MB", or plain numbers.
//
// Supported formats:
//   - Plain numbers: 1024, 1474560
//   - Binary units (x1024): Ki/KiB, Mi/MiB, Gi/GiB, Ti/TiB
//   - Decimal units (x1000): K/KB, M/MB, G/GB, T/TB
//   - Bytes: B
type ByteSize uint64

// Common byte size constants
const (
	B  ByteSize = 1
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB

	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

// ParseByteSize parses a human-readable byte size string into a ByteSize value.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

// FromSectors returns the size of count sectors of sectorSize bytes.
func FromSectors(count uint64, sectorSize uint32) ByteSize {
	return ByteSize(count * uint64(sectorSize))
}

// Sectors returns how many whole sectors of sectorSize bytes fit in b.
// A zero sector size yields zero.
func (b ByteSize) Sectors(sectorSize uint32) uint64 {
	if sectorSize == 0 {
		return 0
	}
	return uint64(b) / uint64(sectorSize)
}

// KiBytes returns the size in whole kibibytes, the unit disk stats are kept in.
func (b ByteSize) KiBytes() uint64 {
	return uint64(b) / uint64(KiB)
}

// UnmarshalText implements encoding.TextUnmarshaler for ByteSize.
// This allows ByteSize to be used directly in structs with mapstructure.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// String returns a human-readable representation of the byte size.
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Uint64 returns the ByteSize as a uint64.
func (b ByteSize) Uint64() uint64 {
	return uint64(b)
}

// Int64 returns the ByteSize as an int64.
// Note: This may overflow for very large values.
func (b ByteSize) Int64() int64 {
	return int64(b)
}
