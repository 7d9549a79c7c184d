// Package driver defines the downward interface of the disk layer: the raw
// sector primitives a storage device exposes.
//
// Every device implements Driver. The I/O primitives and the media-control
// operations are optional interfaces discovered by type assertion, so a
// read-only CD driver simply does not implement SectorWriter and a fixed
// disk does not implement MotorController. Callers use Probe to learn what
// is available; missing primitives surface as ErrUnsupported.
package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by drivers.
var (
	// ErrWriteProtected is returned by WriteSectors when the medium refuses
	// writes. The disk layer reacts by marking the disk read-only.
	ErrWriteProtected = errors.New("medium is write-protected")

	// ErrUnsupported is returned when a primitive is not implemented.
	ErrUnsupported = errors.New("operation not supported by driver")

	// ErrNoMedia is returned by removable drivers with no medium inserted.
	ErrNoMedia = errors.New("no medium present")

	// ErrOutOfRange is returned for requests beyond the last sector.
	ErrOutOfRange = errors.New("sector range out of bounds")

	// ErrDoorLocked is returned when opening a locked door.
	ErrDoorLocked = errors.New("door is locked")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("driver is closed")
)

// Class is the media class of a device. It selects the disk name prefix and
// whether the idle daemon manages the motor.
type Class int

const (
	ClassFloppy Class = iota
	ClassCDROM
	ClassSCSI
	ClassHard
	ClassRAM
)

var classNames = []string{"floppy", "cdrom", "scsi", "hard", "ram"}

var classPrefixes = []string{"fd", "cd", "sd", "hd", "rd"}

func (c Class) String() string {
	if c < 0 || int(c) >= len(classNames) {
		return fmt.Sprintf("class(%d)", int(c))
	}
	return classNames[c]
}

// Prefix returns the two-letter disk name prefix for the class.
func (c Class) Prefix() string {
	if c < 0 || int(c) >= len(classPrefixes) {
		return "xd"
	}
	return classPrefixes[c]
}

// ParseClass converts a class name (or its name prefix) to a Class.
func ParseClass(s string) (Class, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i := range classNames {
		if s == classNames[i] || s == classPrefixes[i] {
			return Class(i), nil
		}
	}
	return 0, fmt.Errorf("unknown disk class %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Class) UnmarshalText(text []byte) error {
	v, err := ParseClass(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Info describes a device's geometry and kind.
type Info struct {
	Driver     string // driver implementation name, e.g. "ramdisk"
	Class      Class
	Removable  bool
	SectorSize uint32
	Sectors    uint64
}

// Bytes returns the device capacity in bytes.
func (i Info) Bytes() uint64 {
	return i.Sectors * uint64(i.SectorSize)
}

// Driver is implemented by every device.
type Driver interface {
	Info() Info
}

// SectorReader reads count sectors starting at start into p, which holds
// exactly count*SectorSize bytes. Implementations must not retain p.
type SectorReader interface {
	ReadSectors(ctx context.Context, start, count uint64, p []byte) error
}

// SectorWriter writes count sectors starting at start from p. A medium that
// refuses writes returns an error wrapping ErrWriteProtected.
type SectorWriter interface {
	WriteSectors(ctx context.Context, start, count uint64, p []byte) error
}

// Flusher pushes device-side write buffers to stable storage.
type Flusher interface {
	Flush(ctx context.Context) error
}

// MotorController switches the spindle motor of removable media.
type MotorController interface {
	SetMotor(ctx context.Context, on bool) error
}

// DoorController opens or closes the drive door (eject/load).
type DoorController interface {
	SetDoor(ctx context.Context, open bool) error
}

// DoorLocker locks or unlocks the drive door.
type DoorLocker interface {
	SetDoorLock(ctx context.Context, locked bool) error
}

// ChangeDetector reports whether the medium changed since the last call.
type ChangeDetector interface {
	MediaChanged(ctx context.Context) (bool, error)
}

// Capabilities lists the optional primitives a driver offers.
type Capabilities struct {
	Read     bool `json:"read"`
	Write    bool `json:"write"`
	Flush    bool `json:"flush"`
	Motor    bool `json:"motor"`
	Door     bool `json:"door"`
	DoorLock bool `json:"door_lock"`
	Change   bool `json:"change"`
}

// CapabilityReporter is implemented by wrappers that implement every
// optional interface but only forward the ones their inner driver has.
type CapabilityReporter interface {
	Capabilities() Capabilities
}

// Probe reports which optional primitives d supports.
func Probe(d Driver) Capabilities {
	if r, ok := d.(CapabilityReporter); ok {
		return r.Capabilities()
	}
	var c Capabilities
	_, c.Read = d.(SectorReader)
	_, c.Write = d.(SectorWriter)
	_, c.Flush = d.(Flusher)
	_, c.Motor = d.(MotorController)
	_, c.Door = d.(DoorController)
	_, c.DoorLock = d.(DoorLocker)
	_, c.Change = d.(ChangeDetector)
	return c
}

// String renders the capability set as a compact flag list, e.g. "rw-m---".
func (c Capabilities) String() string {
	flags := []struct {
		on bool
		ch byte
	}{
		{c.Read, 'r'}, {c.Write, 'w'}, {c.Flush, 'f'}, {c.Motor, 'm'},
		{c.Door, 'd'}, {c.DoorLock, 'l'}, {c.Change, 'c'},
	}
	b := make([]byte, len(flags))
	for i, f := range flags {
		b[i] = '-'
		if f.on {
			b[i] = f.ch
		}
	}
	return string(b)
}

// CheckRange validates a request against the device geometry and the buffer
// length. Drivers call it at the top of ReadSectors and WriteSectors.
func CheckRange(info Info, start, count uint64, p []byte) error {
	if count == 0 {
		return fmt.Errorf("%w: zero sector count", ErrOutOfRange)
	}
	if start >= info.Sectors || count > info.Sectors-start {
		return fmt.Errorf("%w: sectors [%d,%d) on a %d-sector device",
			ErrOutOfRange, start, start+count, info.Sectors)
	}
	if want := count * uint64(info.SectorSize); uint64(len(p)) != want {
		return fmt.Errorf("buffer holds %d bytes, %d sectors need %d", len(p), count, want)
	}
	return nil
}
