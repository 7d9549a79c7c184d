// Package ramdisk provides a memory-backed driver. Besides serving as a real
// RAM disk it emulates removable hardware: a write-protect switch, a motor,
// a lockable door and media change, plus fault injection and an operation
// log for tests.
package ramdisk

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/marmos91/dittoblk/pkg/driver"
)

// Options configures a RAM disk.
type Options struct {
	Class          driver.Class
	Removable      bool
	SectorSize     uint32
	Sectors        uint64
	WriteProtected bool
}

// OpKind identifies a logged driver call.
type OpKind string

const (
	OpRead  OpKind = "read"
	OpWrite OpKind = "write"
	OpFlush OpKind = "flush"
	OpMotor OpKind = "motor"
	OpDoor  OpKind = "door"
	OpLock  OpKind = "lock"
)

// Op is one entry of the operation log.
type Op struct {
	Kind  OpKind
	Start uint64
	Count uint64
	On    bool // motor on, door open, door locked
}

// Disk is a RAM-backed driver. It implements every optional primitive.
type Disk struct {
	mu sync.Mutex

	info     driver.Info
	data     []byte
	wp       bool
	motor    bool
	doorOpen bool
	locked   bool
	present  bool
	changed  bool
	readErr  error
	writeErr error
	flushErr error
	ops      []Op
	closed   bool
}

// New allocates a zero-filled RAM disk.
func New(opts Options) (*Disk, error) {
	if opts.SectorSize == 0 {
		return nil, fmt.Errorf("ramdisk: sector size must be nonzero")
	}
	if opts.Sectors == 0 {
		return nil, fmt.Errorf("ramdisk: sector count must be nonzero")
	}
	return &Disk{
		info: driver.Info{
			Driver:     "ramdisk",
			Class:      opts.Class,
			Removable:  opts.Removable,
			SectorSize: opts.SectorSize,
			Sectors:    opts.Sectors,
		},
		data:    make([]byte, opts.Sectors*uint64(opts.SectorSize)),
		wp:      opts.WriteProtected,
		present: true,
	}, nil
}

// Info implements driver.Driver.
func (d *Disk) Info() driver.Info {
	return d.info
}

func (d *Disk) span(start, count uint64) (uint64, uint64) {
	ss := uint64(d.info.SectorSize)
	return start * ss, (start + count) * ss
}

func (d *Disk) usable() error {
	if d.closed {
		return driver.ErrClosed
	}
	if !d.present {
		return driver.ErrNoMedia
	}
	return nil
}

// ReadSectors implements driver.SectorReader.
func (d *Disk) ReadSectors(ctx context.Context, start, count uint64, p []byte) error {
	if err := driver.CheckRange(d.info, start, count, p); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.ops = append(d.ops, Op{Kind: OpRead, Start: start, Count: count})
	if err := d.usable(); err != nil {
		return err
	}
	if d.readErr != nil {
		return d.readErr
	}
	from, to := d.span(start, count)
	copy(p, d.data[from:to])
	return nil
}

// WriteSectors implements driver.SectorWriter.
func (d *Disk) WriteSectors(ctx context.Context, start, count uint64, p []byte) error {
	if err := driver.CheckRange(d.info, start, count, p); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.ops = append(d.ops, Op{Kind: OpWrite, Start: start, Count: count})
	if err := d.usable(); err != nil {
		return err
	}
	if d.wp {
		return fmt.Errorf("ramdisk: write sectors [%d,%d): %w", start, start+count, driver.ErrWriteProtected)
	}
	if d.writeErr != nil {
		return d.writeErr
	}
	from, to := d.span(start, count)
	copy(d.data[from:to], p)
	return nil
}

// Flush implements driver.Flusher.
func (d *Disk) Flush(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ops = append(d.ops, Op{Kind: OpFlush})
	if d.closed {
		return driver.ErrClosed
	}
	return d.flushErr
}

// SetMotor implements driver.MotorController.
func (d *Disk) SetMotor(ctx context.Context, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ops = append(d.ops, Op{Kind: OpMotor, On: on})
	d.motor = on
	return nil
}

// SetDoor implements driver.DoorController. Opening the door removes the
// medium and closing it reinserts one, which counts as a media change.
func (d *Disk) SetDoor(ctx context.Context, open bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ops = append(d.ops, Op{Kind: OpDoor, On: open})
	if open && d.locked {
		return driver.ErrDoorLocked
	}
	if open != d.doorOpen {
		d.doorOpen = open
		d.present = !open
		d.changed = true
	}
	return nil
}

// SetDoorLock implements driver.DoorLocker.
func (d *Disk) SetDoorLock(ctx context.Context, locked bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ops = append(d.ops, Op{Kind: OpLock, On: locked})
	d.locked = locked
	return nil
}

// MediaChanged implements driver.ChangeDetector. The change latch clears on
// every call.
func (d *Disk) MediaChanged(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	changed := d.changed
	d.changed = false
	return changed, nil
}

// Close releases the backing memory.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	d.data = nil
	return nil
}

// SetWriteProtect flips the write-protect switch.
func (d *Disk) SetWriteProtect(on bool) {
	d.mu.Lock()
	d.wp = on
	d.mu.Unlock()
}

// Swap replaces the medium with a blank one, as if a different floppy were
// inserted. It latches a media change.
func (d *Disk) Swap() {
	d.mu.Lock()
	defer d.mu.Unlock()

	clear(d.data)
	d.present = true
	d.doorOpen = false
	d.changed = true
}

// FailReads makes every subsequent read return err; nil restores normal
// behavior.
func (d *Disk) FailReads(err error) {
	d.mu.Lock()
	d.readErr = err
	d.mu.Unlock()
}

// FailWrites makes every subsequent write return err.
func (d *Disk) FailWrites(err error) {
	d.mu.Lock()
	d.writeErr = err
	d.mu.Unlock()
}

// FailFlush makes Flush return err.
func (d *Disk) FailFlush(err error) {
	d.mu.Lock()
	d.flushErr = err
	d.mu.Unlock()
}

// MotorOn reports the emulated motor state.
func (d *Disk) MotorOn() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.motor
}

// DoorOpen reports the emulated door state.
func (d *Disk) DoorOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doorOpen
}

// DoorLocked reports the emulated door lock.
func (d *Disk) DoorLocked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.locked
}

// Ops returns a copy of the operation log.
func (d *Disk) Ops() []Op {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.ops)
}

// CountOps returns how many logged operations have the given kind.
func (d *Disk) CountOps(kind OpKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, op := range d.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// ResetOps clears the operation log.
func (d *Disk) ResetOps() {
	d.mu.Lock()
	d.ops = nil
	d.mu.Unlock()
}

// Contents returns a copy of the medium, bypassing every emulated fault.
func (d *Disk) Contents(start, count uint64) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	from, to := d.span(start, count)
	return slices.Clone(d.data[from:to])
}

var (
	_ driver.SectorReader    = (*Disk)(nil)
	_ driver.SectorWriter    = (*Disk)(nil)
	_ driver.Flusher         = (*Disk)(nil)
	_ driver.MotorController = (*Disk)(nil)
	_ driver.DoorController  = (*Disk)(nil)
	_ driver.DoorLocker      = (*Disk)(nil)
	_ driver.ChangeDetector  = (*Disk)(nil)
)
