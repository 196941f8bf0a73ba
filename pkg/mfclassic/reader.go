package mfclassic

import (
	"context"
	"log/slog"
)

// Reader reads a full card image sector by sector through a CardSession.
// Sectors are visited strictly in order: a single physical card allows a
// single radio session, so nothing here is concurrent.
type Reader struct {
	Session CardSession
	Tracker *Tracker
	Delays  Delays

	// OnProgress, when set, is invoked with a tracker snapshot after every
	// significant step. It must not block on rendering.
	OnProgress func(Snapshot)
}

func (r *Reader) notify() {
	if r.OnProgress != nil {
		r.OnProgress(r.Tracker.Snapshot())
	}
}

// ReadCard resets the target image, copies the card variant from the
// reference and reads every sector. A failed sector is recorded and skipped;
// the loop always visits all remaining sectors. Cancellation is honored at
// sector boundaries; an in-progress sector is never half-committed. Returns
// true only when every sector was read successfully.
func (r *Reader) ReadCard(ctx context.Context, reference, image *DumpData) bool {
	layout := reference.Layout()
	totalSectors := layout.TotalSectors()

	r.Tracker.SetOperation("Initializing read")
	r.notify()

	image.Reset(reference.Type)
	image.UID = append([]byte(nil), reference.UID...)
	image.ATQA = reference.ATQA
	image.SAK = reference.SAK

	overallSuccess := true
	for sector := 0; sector < totalSectors; sector++ {
		if ctx.Err() != nil {
			slog.Info("read cancelled", "sector", sector)
			return false
		}

		r.Tracker.BeginSector(sector)
		r.notify()
		pause(r.Delays.SectorSettle)

		outcome := readSector(r.Session, reference, image, sector, r.Tracker, r.Delays)
		if outcome.Success {
			r.Tracker.SectorRead(sector)
			r.notify()
			pause(r.Delays.SectorSettle)
			continue
		}

		overallSuccess = false
		r.Tracker.SectorFailed(sector)
		r.notify()
		slog.Error("failed to read sector", "sector", sector, "error", outcome.Err)
	}

	r.Tracker.FinishReading(overallSuccess)
	r.notify()
	return overallSuccess
}
