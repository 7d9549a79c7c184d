// Package prompt provides interactive terminal prompts for CLI commands.
package prompt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/marmos91/dittoblk/internal/bytesize"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

// IsAborted reports whether err came from the user aborting a prompt.
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, ErrAborted)
}

// wrapError converts promptui interrupt/abort errors to ErrAborted.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) {
		return ErrAborted
	}
	return err
}

// ValidateSize accepts human-readable sizes ("1.44MB", "64KiB") holding at
// least one sector.
func ValidateSize(sectorSize uint32) func(string) error {
	return func(s string) error {
		b, err := bytesize.ParseByteSize(s)
		if err != nil {
			return fmt.Errorf("must be a size like 1.44MB or 64MiB")
		}
		if b.Sectors(sectorSize) == 0 {
			return fmt.Errorf("must hold at least one %d-byte sector", sectorSize)
		}
		return nil
	}
}

// ValidatePort accepts TCP port numbers.
func ValidatePort(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a valid integer")
	}
	if v < 1 || v > 65535 {
		return fmt.Errorf("must be a valid port (1-65535)")
	}
	return nil
}

// ValidateName accepts disk and volume names: non-empty, no separators or
// whitespace.
func ValidateName(s string) error {
	if s == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(s, "/\\ \t") {
		return fmt.Errorf("name must not contain slashes or whitespace")
	}
	return nil
}
