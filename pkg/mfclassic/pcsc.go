package mfclassic

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebfe/scard"
)

// PC/SC pseudo-APDU status words for contactless storage cards.
const (
	swSuccess = 0x9000 // operation completed
	swFailed  = 0x6300 // operation failed (typically auth rejected)
)

// scanPollInterval bounds each GetStatusChange wait so StopScan is honored
// promptly.
const scanPollInterval = 250 * time.Millisecond

// PCSCAdapter drives a MIFARE-Classic-compatible card through a PC/SC
// reader using the contactless storage pseudo-APDU set (LOAD KEY FF 82,
// GENERAL AUTHENTICATE FF 86, READ BINARY FF B0). It implements both
// CardSession and Detector: detection runs a status-change poller, the
// session connects lazily on first use.
type PCSCAdapter struct {
	ctx    *scard.Context
	reader string
	card   *scard.Card

	mu       sync.Mutex
	scanStop chan struct{}
	scanDone chan struct{}
}

// NewPCSCAdapter establishes a PC/SC context and binds to the reader at the
// given index.
func NewPCSCAdapter(readerIndex int) (*PCSCAdapter, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("EstablishContext failed: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		ctx.Release()
		return nil, fmt.Errorf("no readers found: %v", err)
	}
	if readerIndex < 0 || readerIndex >= len(readers) {
		ctx.Release()
		return nil, fmt.Errorf("reader index out of range (0..%d)", len(readers)-1)
	}

	slog.Debug("using reader", "index", readerIndex, "name", readers[readerIndex])
	return &PCSCAdapter{ctx: ctx, reader: readers[readerIndex]}, nil
}

// Close disconnects the card, stops any active scan and releases the PC/SC
// context.
func (a *PCSCAdapter) Close() {
	if a == nil {
		return
	}
	a.StopScan()
	if a.card != nil {
		_ = a.card.Disconnect(scard.LeaveCard)
		a.card = nil
	}
	if a.ctx != nil {
		_ = a.ctx.Release()
	}
}

// connect attaches to the card currently in the field, once.
func (a *PCSCAdapter) connect() error {
	if a.card != nil {
		return nil
	}
	card, err := a.ctx.Connect(a.reader, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	a.card = card
	return nil
}

// transmit sends a pseudo-APDU and splits off the status word.
func (a *PCSCAdapter) transmit(apdu []byte) ([]byte, uint16, error) {
	if err := a.connect(); err != nil {
		return nil, 0, err
	}
	resp, err := a.card.Transmit(apdu)
	if err != nil {
		return nil, 0, err
	}
	if len(resp) < 2 {
		return nil, 0, fmt.Errorf("short response: %d bytes", len(resp))
	}
	sw := uint16(resp[len(resp)-2])<<8 | uint16(resp[len(resp)-1])
	return resp[:len(resp)-2], sw, nil
}

// Authenticate loads the key into the reader's volatile slot and performs
// GENERAL AUTHENTICATE for the sector containing block.
func (a *PCSCAdapter) Authenticate(block int, key Key, keyType KeyType) error {
	load := append([]byte{0xFF, 0x82, 0x00, 0x00, 0x06}, key[:]...)
	if _, sw, err := a.transmit(load); err != nil {
		return &AuthError{Block: block, Type: keyType, Cause: err}
	} else if sw != swSuccess {
		return &AuthError{Block: block, Type: keyType, Cause: fmt.Errorf("load key SW=%04X", sw)}
	}

	keyCode := byte(0x60)
	if keyType == KeyTypeB {
		keyCode = 0x61
	}
	auth := []byte{0xFF, 0x86, 0x00, 0x00, 0x05, 0x01, 0x00, byte(block), keyCode, 0x00}
	_, sw, err := a.transmit(auth)
	if err != nil {
		return &AuthError{Block: block, Type: keyType, Cause: err}
	}
	if sw != swSuccess {
		return &AuthError{Block: block, Type: keyType}
	}
	return nil
}

// ReadBlock reads one block under the previously authenticated key. PC/SC
// timeouts are reported as timeout-class read errors so the sector reader
// can retry them; anything else aborts the candidate.
func (a *PCSCAdapter) ReadBlock(block int, key Key, keyType KeyType) (Block, error) {
	var b Block
	apdu := []byte{0xFF, 0xB0, 0x00, byte(block), BlockSize}
	data, sw, err := a.transmit(apdu)
	if err != nil {
		return b, &ReadError{Block: block, Timeout: isPCSCTimeout(err), Cause: err}
	}
	if sw != swSuccess {
		return b, &ReadError{Block: block, Cause: fmt.Errorf("SW=%04X", sw)}
	}
	if len(data) != BlockSize {
		return b, &ReadError{Block: block, Cause: fmt.Errorf("expected %d bytes, got %d", BlockSize, len(data))}
	}
	copy(b[:], data)
	return b, nil
}

func isPCSCTimeout(err error) bool {
	scErr, ok := err.(scard.Error)
	return ok && scErr == scard.ErrTimeout
}

// StartScan polls reader status until a card arrives or the scan is
// stopped. Events are delivered from the poller goroutine.
func (a *PCSCAdapter) StartScan(callback func(Event)) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.scanStop != nil {
		return fmt.Errorf("scan already active")
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	a.scanStop = stop
	a.scanDone = done

	go func() {
		defer close(done)
		states := []scard.ReaderState{{Reader: a.reader, CurrentState: scard.StateUnaware}}
		for {
			select {
			case <-stop:
				return
			default:
			}

			err := a.ctx.GetStatusChange(states, scanPollInterval)
			if err == scard.ErrTimeout {
				continue
			}
			if err != nil {
				slog.Error("status change failed", "error", err)
				callback(EventScanFailed)
				return
			}

			if states[0].EventState&scard.StatePresent != 0 {
				slog.Debug("card present", "reader", a.reader)
				callback(EventCardDetected)
			} else if states[0].EventState&scard.StateEmpty != 0 {
				callback(EventCardLost)
			}
			states[0].CurrentState = states[0].EventState
		}
	}()
	return nil
}

// StopScan terminates the poller and waits for it to exit. Safe to call
// multiple times.
func (a *PCSCAdapter) StopScan() {
	a.mu.Lock()
	stop, done := a.scanStop, a.scanDone
	a.scanStop, a.scanDone = nil, nil
	a.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}
