package disk

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/marmos91/dittoblk/internal/logger"
	"github.com/marmos91/dittoblk/internal/telemetry"
)

// EraseChunkSectors is how many sectors Erase writes and syncs at a time.
// The disk lock is released between chunks.
var EraseChunkSectors uint64 = 4096

// MaxErasePasses bounds the passes of a single Erase.
const MaxErasePasses = 35

// Erase overwrites count sectors starting at start. The first passes-1
// passes write random data, the last writes zeros; each chunk is synced
// through to the driver before the next begins.
func (r *Registry) Erase(ctx context.Context, name string, start, count uint64, passes int) error {
	if passes < 1 || passes > MaxErasePasses {
		return fmt.Errorf("%s: erase passes must be between 1 and %d: %w", name, MaxErasePasses, ErrInvalidRange)
	}
	t, err := r.resolve(name)
	if err != nil {
		return err
	}
	sector, err := t.translate(name, start, count)
	if err != nil {
		return err
	}

	ctx, span := telemetry.StartDiskSpan(ctx, telemetry.SpanDiskErase, name,
		telemetry.Sector(sector), telemetry.Count(count), telemetry.Passes(passes))
	defer span.End()

	d := t.disk
	size := uint64(d.info.SectorSize)
	chunk := max(1, min(count, EraseChunkSectors))
	buf := make([]byte, chunk*size)

	for pass := 1; pass <= passes; pass++ {
		if pass < passes {
			fillRandom(buf, size)
		} else {
			clear(buf)
		}

		for done := uint64(0); done < count; done += chunk {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("erase pass %d/%d: %w", pass, passes, err)
			}
			n := min(chunk, count-done)
			if err := d.eraseChunk(ctx, sector+done, n, buf[:n*size]); err != nil {
				telemetry.RecordError(ctx, err)
				return fmt.Errorf("erase pass %d/%d at sector %d: %w", pass, passes, start+done, err)
			}
		}
		logger.DebugCtx(ctx, "Erase pass done", logger.Disk(d.name), "pass", pass)
	}
	return nil
}

func (d *Disk) eraseChunk(ctx context.Context, sector, count uint64, buf []byte) error {
	d.Lock()
	defer d.Unlock()

	d.touch()
	err := d.ReadWrite(ctx, sector, count, buf, ModeWrite)
	if err == nil {
		err = d.sync(ctx)
	}
	d.touch()
	return err
}

// fillRandom fills one sector with random bytes and repeats it across buf.
func fillRandom(buf []byte, sectorSize uint64) {
	first := buf[:sectorSize]
	for i := range first {
		first[i] = byte(rand.Uint32())
	}
	for off := sectorSize; off < uint64(len(buf)); off += sectorSize {
		copy(buf[off:off+sectorSize], first)
	}
}
