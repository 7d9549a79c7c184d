package disk

import (
	"fmt"
	"strings"
)

// Flags is the per-disk state bitmask.
type Flags uint32

const (
	// FlagReadOnly refuses writes. Set by the user or when the driver reports
	// the media as write-protected.
	FlagReadOnly Flags = 1 << iota

	// FlagNoCache sends every request straight to the driver.
	FlagNoCache

	// FlagMotorOn is set while a removable drive's motor is spinning.
	FlagMotorOn
)

// UserSettable are the flags SetFlags may change.
const UserSettable = FlagReadOnly | FlagNoCache

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagReadOnly, "readonly"},
	{FlagNoCache, "nocache"},
	{FlagMotorOn, "motoron"},
}

func (f Flags) String() string {
	var names []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// ParseFlags parses a comma separated flag list such as "readonly,nocache".
func ParseFlags(s string) (Flags, error) {
	var f Flags
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" || part == "none" {
			continue
		}
		found := false
		for _, fn := range flagNames {
			if fn.name == part {
				f |= fn.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown disk flag %q", part)
		}
	}
	return f, nil
}

// MarshalText encodes the flags in their String form.
func (f Flags) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText decodes a flag list.
func (f *Flags) UnmarshalText(text []byte) error {
	v, err := ParseFlags(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Mode selects the direction and caching of a ReadWrite call.
type Mode uint8

const (
	ModeRead Mode = 1 << iota
	ModeWrite
	// ModeNoCache bypasses the cache for this request only.
	ModeNoCache
)

func (m Mode) write() bool {
	return m&ModeWrite != 0
}
