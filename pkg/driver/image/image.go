//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

// Package image serves a raw disk image file as a sector device. The file
// is accessed with positioned I/O and held under an advisory flock so two
// processes cannot drive the same image.
package image

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/marmos91/dittoblk/pkg/driver"
)

// Options configures an image-backed disk.
type Options struct {
	Path       string
	Class      driver.Class
	Removable  bool
	SectorSize uint32

	// ReadOnly opens the file read-only; writes fail with
	// driver.ErrWriteProtected.
	ReadOnly bool
}

// Disk is a driver over an image file. Trailing bytes that do not fill a
// whole sector are ignored.
type Disk struct {
	path     string
	info     driver.Info
	readOnly bool

	mu     sync.RWMutex
	fd     int
	closed bool
}

// Create makes a zero-filled image of sectors*sectorSize bytes. An existing
// file is left untouched and reported as an error.
func Create(path string, sectorSize uint32, sectors uint64) error {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL|unix.O_CLOEXEC, 0o644)
	if err != nil {
		return fmt.Errorf("create image %s: %w", path, err)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(sectors)*int64(sectorSize)); err != nil {
		return fmt.Errorf("size image %s: %w", path, err)
	}
	return nil
}

// Open opens and locks the image at opts.Path.
func Open(opts Options) (*Disk, error) {
	if opts.SectorSize == 0 {
		return nil, fmt.Errorf("image %s: sector size must be nonzero", opts.Path)
	}

	mode, lock := unix.O_RDWR, unix.LOCK_EX
	if opts.ReadOnly {
		mode, lock = unix.O_RDONLY, unix.LOCK_SH
	}
	fd, err := unix.Open(opts.Path, mode|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", opts.Path, err)
	}

	if err := unix.Flock(fd, lock|unix.LOCK_NB); err != nil {
		_ = unix.Close(fd)
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("image %s is in use by another process", opts.Path)
		}
		return nil, fmt.Errorf("lock image %s: %w", opts.Path, err)
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("stat image %s: %w", opts.Path, err)
	}
	sectors := uint64(st.Size) / uint64(opts.SectorSize)
	if sectors == 0 {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("image %s is smaller than one sector", opts.Path)
	}

	return &Disk{
		path: opts.Path,
		info: driver.Info{
			Driver:     "image",
			Class:      opts.Class,
			Removable:  opts.Removable,
			SectorSize: opts.SectorSize,
			Sectors:    sectors,
		},
		readOnly: opts.ReadOnly,
		fd:       fd,
	}, nil
}

func (d *Disk) Info() driver.Info {
	return d.info
}

func (d *Disk) Path() string {
	return d.path
}

func (d *Disk) offset(start uint64) int64 {
	return int64(start) * int64(d.info.SectorSize)
}

// ReadSectors implements driver.SectorReader.
func (d *Disk) ReadSectors(ctx context.Context, start, count uint64, p []byte) error {
	if err := driver.CheckRange(d.info, start, count, p); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return driver.ErrClosed
	}

	off := d.offset(start)
	for done := 0; done < len(p); {
		n, err := unix.Pread(d.fd, p[done:], off+int64(done))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("pread %s: %w", d.path, err)
		}
		if n == 0 {
			return fmt.Errorf("pread %s: short read at byte %d", d.path, off+int64(done))
		}
		done += n
	}
	return nil
}

// WriteSectors implements driver.SectorWriter.
func (d *Disk) WriteSectors(ctx context.Context, start, count uint64, p []byte) error {
	if err := driver.CheckRange(d.info, start, count, p); err != nil {
		return err
	}
	if d.readOnly {
		return fmt.Errorf("image %s: %w", d.path, driver.ErrWriteProtected)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return driver.ErrClosed
	}

	off := d.offset(start)
	for done := 0; done < len(p); {
		n, err := unix.Pwrite(d.fd, p[done:], off+int64(done))
		if err == unix.EINTR {
			continue
		}
		if err == unix.EROFS {
			return fmt.Errorf("pwrite %s: %w", d.path, driver.ErrWriteProtected)
		}
		if err != nil {
			return fmt.Errorf("pwrite %s: %w", d.path, err)
		}
		done += n
	}
	return nil
}

// Flush implements driver.Flusher with fsync.
func (d *Disk) Flush(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return driver.ErrClosed
	}
	if d.readOnly {
		return nil
	}
	if err := unix.Fsync(d.fd); err != nil {
		return fmt.Errorf("fsync %s: %w", d.path, err)
	}
	return nil
}

// Close releases the lock and the file descriptor.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	_ = unix.Flock(d.fd, unix.LOCK_UN)
	return unix.Close(d.fd)
}

var (
	_ driver.SectorReader = (*Disk)(nil)
	_ driver.SectorWriter = (*Disk)(nil)
	_ driver.Flusher      = (*Disk)(nil)
)
