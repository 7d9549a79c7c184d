//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package image

import (
	"fmt"

	"github.com/marmos91/dittoblk/pkg/driver"
)

type Options struct {
	Path       string
	Class      driver.Class
	Removable  bool
	SectorSize uint32
	ReadOnly   bool
}

// Disk is unavailable on this platform.
type Disk struct{}

func Create(path string, sectorSize uint32, sectors uint64) error {
	return fmt.Errorf("image %s: %w", path, driver.ErrUnsupported)
}

func Open(opts Options) (*Disk, error) {
	return nil, fmt.Errorf("image %s: %w", opts.Path, driver.ErrUnsupported)
}

func (d *Disk) Info() driver.Info {
	return driver.Info{Driver: "image"}
}

func (d *Disk) Close() error {
	return nil
}
