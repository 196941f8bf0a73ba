package mfclassic

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const miniDumpHeader = `Filetype: Flipper NFC device
Version: 4
# Device type can be ISO14443-3A, Mifare Classic, and others
Device type: Mifare Classic
# UID is common for all formats
UID: 12 34 56 78
ATQA: 00 04
SAK: 08
Mifare Classic type: MINI
Data format version: 2
# Mifare Classic blocks, '??' means unknown data
`

// writeMiniFixture builds a complete Mini dump (20 blocks) where sector 1's
// Key A bytes are unknown.
func writeMiniFixture(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(miniDumpHeader)
	layout := Layout{Type: CardTypeMini}
	for i := 0; i < layout.TotalBlocks(); i++ {
		fmt.Fprintf(&b, "Block %d:", i)
		for j := 0; j < BlockSize; j++ {
			if i == 7 && j < 6 {
				// Sector 1 trailer with unknown Key A bytes.
				b.WriteString(" ??")
				continue
			}
			fmt.Fprintf(&b, " %02X", byte(i+j))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func TestParseDumpKeyKnownFlagsFromUnknownBytes(t *testing.T) {
	d, err := ParseDump(strings.NewReader(writeMiniFixture(t)))
	if err != nil {
		t.Fatalf("ParseDump: %v", err)
	}
	if d.Type != CardTypeMini {
		t.Fatalf("card type = %s, want Mini", d.Type)
	}
	if !bytes.Equal(d.UID, []byte{0x12, 0x34, 0x56, 0x78}) {
		t.Fatalf("UID = % X", d.UID)
	}
	if d.ATQA != [2]byte{0x00, 0x04} || d.SAK != 0x08 {
		t.Fatalf("ATQA/SAK = % X / %02X", d.ATQA, d.SAK)
	}
	if d.KeyFound(1, KeyTypeA) {
		t.Fatalf("sector 1 Key A has '??' bytes and must not be marked found")
	}
	if !d.KeyFound(1, KeyTypeB) {
		t.Fatalf("sector 1 Key B is fully known and must be marked found")
	}
	if !d.KeyFound(0, KeyTypeA) || !d.KeyFound(0, KeyTypeB) {
		t.Fatalf("sector 0 keys must be marked found")
	}
	// Unknown bytes parse as zero.
	trailer := d.Block(7)
	for j := 0; j < 6; j++ {
		if trailer[j] != 0 {
			t.Fatalf("unknown trailer byte %d = %02X, want 00", j, trailer[j])
		}
	}
}

func TestParseDumpRejectsBadInput(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"wrong filetype", "Filetype: Something else\n", "unsupported filetype"},
		{"wrong device", "Filetype: Flipper NFC device\nDevice type: NTAG/Ultralight\n", "unsupported device type"},
		{"bad card type", "Filetype: Flipper NFC device\nDevice type: Mifare Classic\nMifare Classic type: 2K\n", "unknown Mifare Classic type"},
		{"short block", miniDumpHeader + "Block 0: 00 11 22\n", "expected 16 bytes, got 3"},
		{"bad byte token", miniDumpHeader + "Block 0: GG 11 22 33 44 55 66 77 88 99 AA BB CC DD EE FF\n", "bad byte token"},
		{"missing blocks", miniDumpHeader, "expected 20 blocks, got 0"},
		{"block before type", "Filetype: Flipper NFC device\nDevice type: Mifare Classic\nBlock 0: 00\n", "block data before card type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDump(strings.NewReader(tc.input))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestDumpRoundTripPreservesBlocksAndKeyState(t *testing.T) {
	ref := buildReference(t, CardType1K)
	// Leave sector 9's Key B unproven.
	ref.keyBMask &^= 1 << 9

	var buf bytes.Buffer
	if err := WriteDump(&buf, ref); err != nil {
		t.Fatalf("WriteDump: %v", err)
	}
	parsed, err := ParseDump(&buf)
	if err != nil {
		t.Fatalf("ParseDump: %v", err)
	}

	layout := ref.Layout()
	for i := 0; i < layout.TotalBlocks(); i++ {
		if layout.IsTrailerBlock(i) && layout.SectorOfBlock(i) == 9 {
			continue // Key B bytes were masked out on write.
		}
		if parsed.Block(i) != ref.Block(i) {
			t.Fatalf("block %d changed in round trip", i)
		}
	}
	if parsed.KeyFound(9, KeyTypeB) {
		t.Fatalf("unproven Key B must stay unproven after round trip")
	}
	if !parsed.KeyFound(9, KeyTypeA) {
		t.Fatalf("Key A must survive round trip")
	}
	if parsed.Type != ref.Type || !bytes.Equal(parsed.UID, ref.UID) {
		t.Fatalf("header fields changed in round trip")
	}
}

func TestLoadFileAndSaveFile(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "card.nfc")
	if err := os.WriteFile(path, []byte(writeMiniFixture(t)), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	d, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	out := filepath.Join(tmp, "saved.nfc")
	if err := SaveFile(out, d); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	again, err := LoadFile(out)
	if err != nil {
		t.Fatalf("LoadFile(saved): %v", err)
	}
	if again.KeyFound(1, KeyTypeA) {
		t.Fatalf("unknown Key A leaked through save/load")
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.nfc")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
