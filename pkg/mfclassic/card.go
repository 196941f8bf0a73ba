package mfclassic

// CardSession is the card protocol capability the verification core drives.
// It is implemented by the PC/SC adapter for real readers and by in-memory
// doubles in tests. All calls are strictly sequential: one radio session,
// one card, no interleaving.
type CardSession interface {
	// Authenticate presents a key for the sector containing block. A
	// rejected key returns an *AuthError; rejected keys are never retried
	// with the same candidate.
	Authenticate(block int, key Key, keyType KeyType) error

	// ReadBlock reads one 16-byte block under a previously authenticated
	// key. Failures are reported as *ReadError; only timeout-class
	// failures are eligible for retry.
	ReadBlock(block int, key Key, keyType KeyType) (Block, error)
}

// Event is an asynchronous card presence notification from a Detector.
type Event int

const (
	EventCardDetected Event = iota
	EventCardLost
	EventScanFailed
)

func (e Event) String() string {
	switch e {
	case EventCardDetected:
		return "card detected"
	case EventCardLost:
		return "card lost"
	default:
		return "scan failed"
	}
}

// Detector is the scanning facility of the card protocol adapter: it
// delivers presence events from a background poller until stopped.
// StopScan must be safe to call more than once and after a scan failure.
type Detector interface {
	StartScan(callback func(Event)) error
	StopScan()
}
