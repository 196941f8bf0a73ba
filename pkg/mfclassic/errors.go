package mfclassic

import (
	"errors"
	"fmt"
)

// AuthError reports a rejected authentication attempt. It is recovered
// locally by advancing to the next key candidate; it becomes fatal for a
// sector only once every candidate has been rejected.
type AuthError struct {
	Block int     // First block of the sector the attempt targeted
	Type  KeyType // Key type presented
	Label string  // Candidate label ("dump key A", "magic fallback", ...)
	Cause error   // Underlying transport error, if any
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth with %s at block %d failed: %v", e.Label, e.Block, e.Cause)
	}
	return fmt.Sprintf("auth with %s (type %s) at block %d rejected", e.Label, e.Type, e.Block)
}

func (e *AuthError) Unwrap() error { return e.Cause }

// ReadError reports a failed block read. Timeout-class failures are retried
// a bounded number of times; anything else aborts the block loop for the
// current candidate immediately.
type ReadError struct {
	Block   int
	Timeout bool
	Cause   error
}

func (e *ReadError) Error() string {
	kind := "read error"
	if e.Timeout {
		kind = "read timeout"
	}
	if e.Cause != nil {
		return fmt.Sprintf("block %d %s: %v", e.Block, kind, e.Cause)
	}
	return fmt.Sprintf("block %d %s", e.Block, kind)
}

func (e *ReadError) Unwrap() error { return e.Cause }

// SectorError records why a whole sector could not be read. Sector errors
// are non-fatal to a run: the remaining sectors are still attempted.
type SectorError struct {
	Sector int
	Cause  error
}

func (e *SectorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("sector %d failed: %v", e.Sector, e.Cause)
	}
	return fmt.Sprintf("sector %d failed", e.Sector)
}

func (e *SectorError) Unwrap() error { return e.Cause }

// ErrCandidatesExhausted is the sector error cause when no candidate key
// authenticated and read the sector to completion.
var ErrCandidatesExhausted = errors.New("all key candidates exhausted")

// IsTimeout reports whether an error is a timeout-class read failure.
func IsTimeout(err error) bool {
	var readErr *ReadError
	return errors.As(err, &readErr) && readErr.Timeout
}

// IsAuthError reports whether an error is a rejected authentication.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
