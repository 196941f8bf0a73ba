package mfclassic

import "testing"

func TestCandidateKeysFallbackAlwaysPresentAndLast(t *testing.T) {
	ref := buildReference(t, CardType1K)
	for s := 0; s < ref.Layout().TotalSectors(); s++ {
		candidates := CandidateKeys(ref, s)
		if len(candidates) != 3 {
			t.Fatalf("sector %d: expected 3 candidates, got %d", s, len(candidates))
		}
		last := candidates[len(candidates)-1]
		if last.Key != MagicKey || last.Type != KeyTypeA {
			t.Fatalf("sector %d: last candidate is not the magic fallback: %+v", s, last)
		}
	}
}

func TestCandidateKeysWithNoKnownKeysHasOnlyFallback(t *testing.T) {
	ref := buildReference(t, CardType1K)
	ref.keyAMask = 0
	ref.keyBMask = 0
	candidates := CandidateKeys(ref, 3)
	if len(candidates) != 1 {
		t.Fatalf("expected exactly one candidate, got %d", len(candidates))
	}
	if candidates[0].Key != MagicKey || candidates[0].Type != KeyTypeA {
		t.Fatalf("sole candidate must be the magic fallback, got %+v", candidates[0])
	}
}

func TestCandidateKeysPriorityOrder(t *testing.T) {
	ref := buildReference(t, CardType1K)
	candidates := CandidateKeys(ref, 5)
	if candidates[0].Key != dumpKeyA(5) || candidates[0].Type != KeyTypeA {
		t.Fatalf("first candidate must be dump key A, got %+v", candidates[0])
	}
	if candidates[1].Key != dumpKeyB(5) || candidates[1].Type != KeyTypeB {
		t.Fatalf("second candidate must be dump key B, got %+v", candidates[1])
	}
}

func TestCandidateKeysOnlyKeyBKnown(t *testing.T) {
	ref := buildReference(t, CardType1K)
	ref.keyAMask = 0
	candidates := CandidateKeys(ref, 7)
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].Type != KeyTypeB {
		t.Fatalf("first candidate must be dump key B, got %+v", candidates[0])
	}
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("A0A1A2A3A4A5")
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	want := Key{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5}
	if k != want {
		t.Fatalf("ParseKey = %v, want %v", k, want)
	}
	if _, err := ParseKey("A0A1"); err == nil {
		t.Fatalf("expected length error")
	}
	if _, err := ParseKey("zzzzzzzzzzzz"); err == nil {
		t.Fatalf("expected hex error")
	}
}

func TestSectorKeyReadsTrailerBytes(t *testing.T) {
	ref := buildReference(t, CardType1K)
	if got := ref.SectorKey(4, KeyTypeA); got != dumpKeyA(4) {
		t.Fatalf("SectorKey A = %v, want %v", got, dumpKeyA(4))
	}
	if got := ref.SectorKey(4, KeyTypeB); got != dumpKeyB(4) {
		t.Fatalf("SectorKey B = %v, want %v", got, dumpKeyB(4))
	}
}
