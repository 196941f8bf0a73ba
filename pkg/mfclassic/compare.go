package mfclassic

import (
	"fmt"
	"strings"
)

// compareProgressStep is how often the comparator refreshes the operation
// text: coarse, purely for observability.
const compareProgressStep = 16

// BlockDifference captures one differing block for detailed display.
type BlockDifference struct {
	Block     int
	Expected  Block
	Found     Block
	DiffMask  [BlockSize]bool
	DiffBytes int
}

// DifferenceReport is the outcome of a structural comparison: the ordered
// list of differing data blocks plus exact counts. Immutable once produced.
type DifferenceReport struct {
	Compared  int   // non-excluded blocks visited
	Different int   // blocks whose 16 bytes did not match
	Blocks    []int // differing block indices, ascending
	Details   []BlockDifference
}

// Matches reports whether the comparison found no differences.
func (r *DifferenceReport) Matches() bool { return r.Different == 0 }

// Compare walks every block of the card and compares reference against the
// freshly read image, skipping the fields that legitimately differ:
//
//   - block 0 (manufacturer/UID block) is never byte-compared
//   - sector trailers are skipped, since key material changes between the
//     magic-key and restored-key states
//
// Skipped blocks count neither as compared nor as different. The walk never
// stops early so the final counts are exact. tracker may be nil.
func Compare(reference, image *DumpData, tracker *Tracker) *DifferenceReport {
	layout := reference.Layout()
	totalBlocks := layout.TotalBlocks()
	report := &DifferenceReport{}

	for i := 0; i < totalBlocks; i++ {
		if tracker != nil && i%compareProgressStep == 0 {
			tracker.SetOperation("Comparing block %d/%d", i, totalBlocks)
		}

		if i == 0 || layout.IsTrailerBlock(i) {
			continue
		}

		expected := reference.Block(i)
		found := image.Block(i)
		report.Compared++

		if expected == found {
			if tracker != nil {
				tracker.BlockCompared(false)
			}
			continue
		}

		diff := BlockDifference{Block: i, Expected: expected, Found: found}
		for j := 0; j < BlockSize; j++ {
			if expected[j] != found[j] {
				diff.DiffMask[j] = true
				diff.DiffBytes++
			}
		}
		report.Different++
		report.Blocks = append(report.Blocks, i)
		report.Details = append(report.Details, diff)
		if tracker != nil {
			tracker.BlockCompared(true)
		}
	}

	return report
}

// maxDetailedDiffs bounds how many blocks FormatReport prints in full.
const maxDetailedDiffs = 10

// FormatReport renders the difference report as the text shown to the user,
// with differing bytes bracketed:
//
//	Exp:  12  34 [56] ...
//	Got:  12  34 [AB] ...
func FormatReport(report *DifferenceReport, layout Layout) string {
	var b strings.Builder
	totalBlocks := layout.TotalBlocks()

	fmt.Fprintf(&b, "Verification Results\n====================\n\n")
	fmt.Fprintf(&b, "Blocks compared: %d of %d\n", report.Compared, totalBlocks)
	fmt.Fprintf(&b, "Blocks OK: %d\n", report.Compared-report.Different)
	fmt.Fprintf(&b, "Blocks DIFFER: %d\n\n", report.Different)

	if report.Different == 0 {
		b.WriteString("All data blocks match.\n")
		return b.String()
	}

	b.WriteString("Differences:\n============\n\n")
	for i, diff := range report.Details {
		if i >= maxDetailedDiffs {
			fmt.Fprintf(&b, "... %d more\n\n", len(report.Details)-maxDetailedDiffs)
			break
		}
		fmt.Fprintf(&b, "Block %d (sector %d), %d bytes differ\n",
			diff.Block, layout.SectorOfBlock(diff.Block), diff.DiffBytes)
		b.WriteString("Exp: ")
		writeHexWithMask(&b, diff.Expected, diff.DiffMask)
		b.WriteString("\nGot: ")
		writeHexWithMask(&b, diff.Found, diff.DiffMask)
		b.WriteString("\n\n")
	}
	b.WriteString("[XX]=diff  XX=same\n")
	return b.String()
}

func writeHexWithMask(b *strings.Builder, data Block, mask [BlockSize]bool) {
	for i, v := range data {
		if mask[i] {
			fmt.Fprintf(b, "[%02X]", v)
		} else {
			fmt.Fprintf(b, " %02X ", v)
		}
		if (i+1)%8 == 0 && i < BlockSize-1 {
			b.WriteString("\n     ")
		}
	}
}
