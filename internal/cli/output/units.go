package output

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Bytes formats a byte count with binary units ("1.4 MiB").
func Bytes(n uint64) string {
	return humanize.IBytes(n)
}

// KiBytes formats a count kept in KiB, the unit of disk stats.
func KiBytes(kb uint64) string {
	return humanize.IBytes(kb * 1024)
}

// Geometry formats a sector count and size as "2880 x 512 B (1.4 MiB)".
func Geometry(sectors uint64, sectorSize uint32) string {
	return fmt.Sprintf("%s x %d B (%s)", humanize.Comma(int64(sectors)), sectorSize, Bytes(sectors*uint64(sectorSize)))
}

// Ago formats a timestamp relative to now ("3 minutes ago"). The zero time
// renders as "never".
func Ago(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

// Millis formats an accumulated duration in milliseconds.
func Millis(d time.Duration) string {
	return humanize.CommafWithDigits(float64(d.Microseconds())/1000, 1) + " ms"
}
