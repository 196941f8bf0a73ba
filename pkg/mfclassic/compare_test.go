package mfclassic

import (
	"reflect"
	"strings"
	"testing"
)

func TestCompareIdenticalImagesMatch(t *testing.T) {
	ref := buildReference(t, CardType1K)
	img := cloneDump(t, ref)

	report := Compare(ref, img, nil)
	if !report.Matches() {
		t.Fatalf("identical images must match, got %d differences", report.Different)
	}
	// 64 blocks minus block 0 and 16 trailers.
	if report.Compared != 47 {
		t.Fatalf("Compared = %d, want 47", report.Compared)
	}
}

func TestCompareIgnoresBlockZeroAndTrailers(t *testing.T) {
	ref := buildReference(t, CardType1K)
	img := cloneDump(t, ref)
	layout := ref.Layout()

	// Corrupt exactly the excluded blocks.
	img.SetBlock(0, Block{0xDE, 0xAD, 0xBE, 0xEF})
	for s := 0; s < layout.TotalSectors(); s++ {
		trailer := layout.TrailerBlockOfSector(s)
		var b Block
		for j := range b {
			b[j] = 0xEE
		}
		img.SetBlock(trailer, b)
	}

	report := Compare(ref, img, nil)
	if report.Different != 0 {
		t.Fatalf("excluded blocks reported as differing: %v", report.Blocks)
	}
	if report.Compared != layout.TotalBlocks()-1-layout.TotalSectors() {
		t.Fatalf("Compared = %d, want %d", report.Compared, layout.TotalBlocks()-1-layout.TotalSectors())
	}
}

func TestCompareReportsDifferingDataBlock(t *testing.T) {
	ref := buildReference(t, CardType1K)
	img := cloneDump(t, ref)

	b := img.Block(5)
	b[7] ^= 0xFF
	b[12] ^= 0x01
	img.SetBlock(5, b)

	tracker := NewTracker(16)
	report := Compare(ref, img, tracker)

	if report.Different != 1 || len(report.Blocks) != 1 || report.Blocks[0] != 5 {
		t.Fatalf("expected exactly block 5 to differ, got %v", report.Blocks)
	}
	detail := report.Details[0]
	if detail.DiffBytes != 2 || !detail.DiffMask[7] || !detail.DiffMask[12] {
		t.Fatalf("diff detail wrong: %+v", detail)
	}
	snap := tracker.Snapshot()
	if snap.BlocksCompared != report.Compared || snap.BlocksDifferent != 1 {
		t.Fatalf("tracker compare counters = %d/%d", snap.BlocksCompared, snap.BlocksDifferent)
	}
}

func TestCompareVisitsEveryBlockWithoutStoppingEarly(t *testing.T) {
	ref := buildReference(t, CardType1K)
	img := cloneDump(t, ref)
	for _, i := range []int{1, 5, 62} {
		b := img.Block(i)
		b[0] ^= 0xAA
		img.SetBlock(i, b)
	}

	report := Compare(ref, img, nil)
	want := []int{1, 5, 62}
	if !reflect.DeepEqual(report.Blocks, want) {
		t.Fatalf("Blocks = %v, want %v", report.Blocks, want)
	}
	if report.Compared != 47 {
		t.Fatalf("Compared = %d, want 47 despite differences", report.Compared)
	}
}

func TestCompareIsIdempotent(t *testing.T) {
	ref := buildReference(t, CardType1K)
	img := cloneDump(t, ref)
	b := img.Block(9)
	b[3] ^= 0x10
	img.SetBlock(9, b)

	first := Compare(ref, img, nil)
	second := Compare(ref, img, nil)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("comparator must be deterministic:\n%+v\n%+v", first, second)
	}
}

func TestFormatReportMatchesAndDiffs(t *testing.T) {
	ref := buildReference(t, CardType1K)
	img := cloneDump(t, ref)
	layout := ref.Layout()

	clean := Compare(ref, img, nil)
	text := FormatReport(clean, layout)
	if !strings.Contains(text, "All data blocks match.") {
		t.Fatalf("clean report missing match line:\n%s", text)
	}

	b := img.Block(5)
	b[0] ^= 0xFF
	img.SetBlock(5, b)
	dirty := Compare(ref, img, nil)
	text = FormatReport(dirty, layout)
	if !strings.Contains(text, "Block 5 (sector 1), 1 bytes differ") {
		t.Fatalf("diff report missing block detail:\n%s", text)
	}
	if !strings.Contains(text, "Blocks DIFFER: 1") {
		t.Fatalf("diff report missing count:\n%s", text)
	}
}
