package mfclassic

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Key is a 6-byte MIFARE Classic sector key.
type Key [6]byte

// KeyType selects which of a sector's two credentials an operation uses.
type KeyType int

const (
	KeyTypeA KeyType = iota
	KeyTypeB
)

func (t KeyType) String() string {
	if t == KeyTypeB {
		return "B"
	}
	return "A"
}

// MagicKey is the well-known all-0xFF transport key that magic and freshly
// unlocked cards accept regardless of their configured keys.
var MagicKey = Key{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

func (k Key) String() string {
	return strings.ToUpper(hex.EncodeToString(k[:]))
}

// ParseKey parses a 12-hex-character sector key.
func ParseKey(s string) (Key, error) {
	var k Key
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return k, fmt.Errorf("invalid hex key: %w", err)
	}
	if len(b) != len(k) {
		return k, fmt.Errorf("key must be %d bytes, got %d", len(k), len(b))
	}
	copy(k[:], b)
	return k, nil
}

// KeyCandidate is one authentication attempt the sector reader will make:
// a key value, the key type to present it as, and a label for diagnostics.
type KeyCandidate struct {
	Key   Key
	Type  KeyType
	Label string
}

// CandidateKeys builds the ordered candidate list for a sector:
//
//  1. The reference dump's Key A, if the dump marks it found.
//  2. The reference dump's Key B, if the dump marks it found.
//  3. The magic 0xFF key as type A, always appended last.
//
// The fallback guarantees the list is never empty: a sector with no known
// dump keys still gets exactly one candidate.
func CandidateKeys(reference *DumpData, sector int) []KeyCandidate {
	candidates := make([]KeyCandidate, 0, 3)
	if reference.KeyFound(sector, KeyTypeA) {
		candidates = append(candidates, KeyCandidate{
			Key:   reference.SectorKey(sector, KeyTypeA),
			Type:  KeyTypeA,
			Label: "dump key A",
		})
	}
	if reference.KeyFound(sector, KeyTypeB) {
		candidates = append(candidates, KeyCandidate{
			Key:   reference.SectorKey(sector, KeyTypeB),
			Type:  KeyTypeB,
			Label: "dump key B",
		})
	}
	candidates = append(candidates, KeyCandidate{
		Key:   MagicKey,
		Type:  KeyTypeA,
		Label: "magic fallback",
	})
	return candidates
}
