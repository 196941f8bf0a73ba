package mfclassic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// State is the verification workflow state.
type State int

const (
	StateCardSearch State = iota
	StateReading
	StateComparison
	StateSuccess
	StateDifferencesFound
	StateReadFailed
)

func (s State) String() string {
	switch s {
	case StateCardSearch:
		return "card search"
	case StateReading:
		return "reading"
	case StateComparison:
		return "comparison"
	case StateSuccess:
		return "success"
	case StateDifferencesFound:
		return "differences found"
	case StateReadFailed:
		return "read failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrScanFailed is returned when the detector reports that card detection
// failed before a card was ever seen.
var ErrScanFailed = errors.New("card detection failed")

// Result is the terminal outcome of one verification run.
type Result struct {
	State    State
	ReadOK   bool
	Image    *DumpData         // freshly read image (complete only when ReadOK)
	Report   *DifferenceReport // nil when the read failed (comparison never ran)
	Progress Snapshot          // final tracker snapshot
}

// Verifier orchestrates one verification run: wait for a card, read a full
// image through the session, compare it against the reference dump. All
// card I/O happens on the goroutine calling Run; the detector delivers
// presence events from its own poller.
type Verifier struct {
	Session   CardSession
	Detector  Detector
	Reference *DumpData
	Delays    Delays

	// OnProgress, when set, receives tracker snapshots at every checkpoint.
	// It must not block; rendering is the caller's concern.
	OnProgress func(Snapshot)
}

func (v *Verifier) notify(t *Tracker) {
	if v.OnProgress != nil {
		v.OnProgress(t.Snapshot())
	}
}

// Run executes the workflow to a terminal state. Cancelling the context at
// any point stops the detector, abandons outstanding card I/O at the next
// sector boundary and returns the context error; partially read sectors are
// discarded, never merged.
func (v *Verifier) Run(ctx context.Context) (*Result, error) {
	layout := v.Reference.Layout()
	tracker := NewTracker(layout.TotalSectors())

	tracker.SetOperation("Place card near reader")
	v.notify(tracker)

	if err := v.waitForCard(ctx, tracker); err != nil {
		return nil, err
	}

	// Reading: strictly sequential, blocking until all sectors visited.
	image := NewDumpData(v.Reference.Type)
	reader := &Reader{
		Session:    v.Session,
		Tracker:    tracker,
		Delays:     v.Delays,
		OnProgress: v.OnProgress,
	}
	readOK := reader.ReadCard(ctx, v.Reference, image)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !readOK {
		tracker.SetError("Cannot read card\nCheck keys or position")
		v.notify(tracker)
		slog.Error("verification read failed",
			"sectors_failed", tracker.Snapshot().SectorsFailed)
		return &Result{
			State:    StateReadFailed,
			Image:    image,
			Progress: tracker.Snapshot(),
		}, nil
	}

	tracker.SetOperation("Comparing data")
	v.notify(tracker)

	report := Compare(v.Reference, image, tracker)
	v.notify(tracker)

	state := StateSuccess
	if !report.Matches() {
		state = StateDifferencesFound
		slog.Warn("differences found", "blocks", report.Different)
	} else {
		slog.Info("verification succeeded", "blocks_compared", report.Compared)
	}

	return &Result{
		State:    state,
		ReadOK:   true,
		Image:    image,
		Report:   report,
		Progress: tracker.Snapshot(),
	}, nil
}

// waitForCard runs the detector until a card appears, the scan fails, or
// the context is cancelled. The poller is always stopped before manual
// reading starts: only one radio session may drive the card.
func (v *Verifier) waitForCard(ctx context.Context, tracker *Tracker) error {
	events := make(chan Event, 4)
	if err := v.Detector.StartScan(func(e Event) {
		select {
		case events <- e:
		default:
		}
	}); err != nil {
		return fmt.Errorf("start scan: %w", err)
	}
	defer v.Detector.StopScan()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-events:
			switch e {
			case EventCardDetected:
				tracker.SetOperation("Card detected")
				v.notify(tracker)
				return nil
			case EventScanFailed:
				tracker.SetError("Card detection failed")
				v.notify(tracker)
				return ErrScanFailed
			case EventCardLost:
				// Keep waiting; the card may come back into the field.
			}
		}
	}
}
