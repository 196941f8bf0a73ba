package mfclassic

import (
	"log/slog"
	"time"
)

// blockReadAttempts bounds the per-block retry loop. Only timeout-class
// failures consume retries; any other failure abandons the candidate at once.
const blockReadAttempts = 3

// reauthInterval is the re-authentication cadence within a sector: after the
// first two blocks, the session is re-established before every even
// block-in-sector index to survive session drops on marginal coupling.
const reauthInterval = 2

// Delays groups the fixed pauses inserted during a read. The defaults
// mirror the firmware timings; tests zero them to run without sleeping.
type Delays struct {
	BlockRetry   time.Duration // pause before block-read attempts 2 and 3
	SectorSettle time.Duration // pause around per-sector progress updates
}

// DefaultDelays returns the production timings.
func DefaultDelays() Delays {
	return Delays{
		BlockRetry:   50 * time.Millisecond,
		SectorSettle: 50 * time.Millisecond,
	}
}

func pause(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// SectorOutcome summarizes one sector read attempt.
type SectorOutcome struct {
	Sector       int
	Success      bool
	Winner       *KeyCandidate // candidate that read the whole sector, if any
	AuthAttempts int           // candidate authentications (re-auths excluded)
	ReadRetries  int           // block-read retries consumed
	Err          error         // *SectorError when Success is false
}

// Per-sector read state machine. Retry and fall-through policy lives in the
// transitions rather than in nested loops.
type sectorState int

const (
	stateSelectCandidate sectorState = iota
	stateAuthenticate
	stateReadBlocks
	stateDone
	stateFailed
)

// readSector drives one sector to success or failure: candidates in strict
// priority order, authentication per candidate, block reads with bounded
// timeout retry, periodic re-authentication. All blocks of the sector must
// be read under the same candidate; partial reads are staged and discarded,
// never merged into the image.
func readSector(session CardSession, reference, image *DumpData, sector int, tracker *Tracker, delays Delays) SectorOutcome {
	layout := reference.Layout()
	firstBlock := layout.FirstBlockOfSector(sector)
	blocksIn := layout.BlocksInSector(sector)
	candidates := CandidateKeys(reference, sector)

	out := SectorOutcome{Sector: sector}
	staged := make([]Block, blocksIn)

	state := stateSelectCandidate
	candIdx := -1
	var cand KeyCandidate
	var lastErr error

	for {
		switch state {
		case stateSelectCandidate:
			candIdx++
			if candIdx >= len(candidates) {
				if lastErr == nil {
					lastErr = ErrCandidatesExhausted
				}
				state = stateFailed
				continue
			}
			cand = candidates[candIdx]
			state = stateAuthenticate

		case stateAuthenticate:
			tracker.AuthAttempt()
			out.AuthAttempts++
			if err := session.Authenticate(firstBlock, cand.Key, cand.Type); err != nil {
				slog.Debug("auth rejected", "sector", sector, "candidate", cand.Label, "error", err)
				lastErr = err
				state = stateSelectCandidate
				continue
			}
			tracker.AuthSuccess()
			slog.Debug("auth ok", "sector", sector, "candidate", cand.Label)
			state = stateReadBlocks

		case stateReadBlocks:
			next, err := readSectorBlocks(session, firstBlock, blocksIn, cand, staged, &out, delays)
			if err != nil {
				lastErr = err
			}
			state = next

		case stateDone:
			for i := 0; i < blocksIn; i++ {
				image.SetBlock(firstBlock+i, staged[i])
			}
			// The sector is proven readable, so both key slots are marked
			// found even though only one key type was presented.
			image.SetKeyFound(sector, KeyTypeA)
			image.SetKeyFound(sector, KeyTypeB)
			winner := cand
			out.Winner = &winner
			out.Success = true
			return out

		case stateFailed:
			slog.Warn("sector read failed", "sector", sector, "error", lastErr)
			out.Err = &SectorError{Sector: sector, Cause: lastErr}
			return out
		}
	}
}

// readSectorBlocks reads every block of the sector in ascending order under
// one candidate, staging results. It returns the next state:
//
//   - stateDone when every block was read
//   - stateSelectCandidate when a block failed (timeout retries exhausted
//     or a non-timeout error), so the next candidate starts from block 0
//   - stateFailed when a re-authentication was rejected, which aborts the
//     sector without trying further candidates
func readSectorBlocks(session CardSession, firstBlock, blocksIn int, cand KeyCandidate, staged []Block, out *SectorOutcome, delays Delays) (sectorState, error) {
	for blockInSector := 0; blockInSector < blocksIn; blockInSector++ {
		block := firstBlock + blockInSector

		if blockInSector > 0 && blockInSector%reauthInterval == 0 {
			if err := session.Authenticate(firstBlock, cand.Key, cand.Type); err != nil {
				slog.Warn("re-auth failed", "block", block, "candidate", cand.Label)
				return stateFailed, &AuthError{Block: firstBlock, Type: cand.Type, Label: cand.Label, Cause: err}
			}
		}

		read := false
		for attempt := 0; attempt < blockReadAttempts && !read; attempt++ {
			if attempt > 0 {
				out.ReadRetries++
				pause(delays.BlockRetry)
			}
			b, err := session.ReadBlock(block, cand.Key, cand.Type)
			if err == nil {
				staged[blockInSector] = b
				read = true
				continue
			}
			if !IsTimeout(err) {
				slog.Debug("non-timeout read error", "block", block, "error", err)
				return stateSelectCandidate, err
			}
		}
		if !read {
			return stateSelectCandidate, &ReadError{Block: block, Timeout: true}
		}
	}
	return stateDone, nil
}
