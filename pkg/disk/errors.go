package disk

import "errors"

var (
	// ErrInvalidRange is returned for zero-length requests and buffers whose
	// length does not match the sector count.
	ErrInvalidRange = errors.New("invalid sector range")

	// ErrNoSuchDisk is returned when a name resolves to neither a disk nor a
	// logical volume.
	ErrNoSuchDisk = errors.New("no such disk")

	// ErrBounds is returned when a request falls outside a disk or volume.
	ErrBounds = errors.New("sector range out of bounds")

	// ErrNotRemovable is returned for door operations on fixed disks.
	ErrNotRemovable = errors.New("disk is not removable")

	// ErrExists is returned when registering a name already in use.
	ErrExists = errors.New("disk already exists")
)
