package mfclassic

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Tracker is the run-scoped progress and diagnostics record of one
// verification run. It is created at the start of a run and discarded at
// the end; nothing holds tracker state between runs.
//
// The reader goroutine mutates it and the presentation layer reads
// snapshots, so every field group is updated atomically under one lock and
// Snapshot returns a consistent copy (the compared/different counters can
// never be observed torn).
type Tracker struct {
	mu sync.Mutex

	currentSector int
	totalSectors  int
	sectorsRead   int
	sectorsFailed int

	authAttempts  int
	authSuccesses int

	blocksCompared  int
	blocksDifferent int

	operation    string
	lastResult   string
	errorDetails string

	complete bool
	started  time.Time
}

// Snapshot is a consistent copy of the tracker state, handed to progress
// observers and safe to retain.
type Snapshot struct {
	CurrentSector int
	TotalSectors  int
	SectorsRead   int
	SectorsFailed int

	AuthAttempts  int
	AuthSuccesses int

	BlocksCompared  int
	BlocksDifferent int

	Operation    string
	LastResult   string
	ErrorDetails string

	Complete bool
	Elapsed  time.Duration
}

// NewTracker initializes a tracker for a run over totalSectors sectors.
func NewTracker(totalSectors int) *Tracker {
	return &Tracker{
		totalSectors: totalSectors,
		started:      time.Now(),
	}
}

// Snapshot returns a consistent copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		CurrentSector:   t.currentSector,
		TotalSectors:    t.totalSectors,
		SectorsRead:     t.sectorsRead,
		SectorsFailed:   t.sectorsFailed,
		AuthAttempts:    t.authAttempts,
		AuthSuccesses:   t.authSuccesses,
		BlocksCompared:  t.blocksCompared,
		BlocksDifferent: t.blocksDifferent,
		Operation:       t.operation,
		LastResult:      t.lastResult,
		ErrorDetails:    t.errorDetails,
		Complete:        t.complete,
		Elapsed:         time.Since(t.started),
	}
}

// BeginSector records the sector about to be read and the operation text.
func (t *Tracker) BeginSector(sector int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentSector = sector
	t.operation = fmt.Sprintf("Reading sector %d", sector)
}

// AuthAttempt counts one candidate authentication attempt.
func (t *Tracker) AuthAttempt() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.authAttempts++
}

// AuthSuccess counts one successful candidate authentication.
func (t *Tracker) AuthSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.authSuccesses++
}

// SectorRead records a successfully read sector.
func (t *Tracker) SectorRead(sector int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sectorsRead++
	t.lastResult = fmt.Sprintf("Sector %d OK", sector)
}

// SectorFailed records a sector that exhausted every candidate.
func (t *Tracker) SectorFailed(sector int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sectorsFailed++
	t.errorDetails = fmt.Sprintf("Sector %d failed", sector)
}

// FinishReading marks the read phase complete and sets the summary strings.
func (t *Tracker) FinishReading(success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentSector = t.totalSectors
	t.complete = true
	if success {
		t.operation = "Read complete"
		t.lastResult = fmt.Sprintf("All %d sectors read", t.sectorsRead)
	} else {
		t.operation = "Read incomplete"
		t.lastResult = fmt.Sprintf("%d sectors failed", t.sectorsFailed)
	}
}

// SetOperation sets the short "current operation" text.
func (t *Tracker) SetOperation(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.operation = fmt.Sprintf(format, args...)
}

// SetError sets the short diagnostic text shown on fatal conditions.
func (t *Tracker) SetError(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errorDetails = fmt.Sprintf(format, args...)
}

// BlockCompared counts one compared block, differing or not.
func (t *Tracker) BlockCompared(different bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.blocksCompared++
	if different {
		t.blocksDifferent++
	}
}

// Percentage returns read progress as 0-100. The reported value is based on
// the sector cursor, jumping to 100 once the read phase completes.
func (s Snapshot) Percentage() int {
	if s.TotalSectors == 0 {
		return 0
	}
	if s.Complete {
		return 100
	}
	return s.CurrentSector * 100 / s.TotalSectors
}

// Bar renders an ASCII progress bar like "[=======>    ]" of the given
// inner width.
func (s Snapshot) Bar(width int) string {
	pct := s.Percentage()
	filled := pct * width / 100
	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < width; i++ {
		switch {
		case i < filled:
			b.WriteByte('=')
		case i == filled && pct < 100:
			b.WriteByte('>')
		default:
			b.WriteByte(' ')
		}
	}
	b.WriteByte(']')
	return b.String()
}

// ETA estimates the remaining read time from the elapsed time per finished
// sector. Returns 0 until at least one sector has finished.
func (s Snapshot) ETA() time.Duration {
	done := s.SectorsRead + s.SectorsFailed
	if done == 0 || s.TotalSectors == 0 {
		return 0
	}
	remaining := s.TotalSectors - done
	if remaining <= 0 {
		return 0
	}
	return s.Elapsed / time.Duration(done) * time.Duration(remaining)
}
