package disk

import "time"

// Metrics receives dispatcher events. Implementations must be safe for
// concurrent use. A nil Metrics disables collection.
type Metrics interface {
	// ObserveIO records one ReadWrite request.
	ObserveIO(disk string, write, direct bool, sectors uint64, elapsed time.Duration, err error)

	// RecordWriteProtect counts disks switched to read-only by the driver.
	RecordWriteProtect(disk string)

	// RecordMotor counts motor state changes.
	RecordMotor(disk string, on bool)
}
