package mfclassic

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Flipper NFC file constants. The dump format is the pre-existing artifact
// produced by the Flipper's NFC app; this package only reads and writes it,
// it does not define it.
const (
	nfcFiletype    = "Flipper NFC device"
	nfcDeviceType  = "Mifare Classic"
	unknownByteTok = "??"
)

// LoadFile loads a MIFARE Classic dump from a Flipper .nfc file.
func LoadFile(path string) (*DumpData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dump: %w", err)
	}
	defer f.Close()
	d, err := ParseDump(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return d, nil
}

// ParseDump parses the Flipper NFC text format: "Key: value" header lines,
// then one "Block N: ..." line per block. A '??' byte token marks data the
// capturing read never recovered; a sector key is marked found only when
// all six of its trailer bytes are known.
func ParseDump(r io.Reader) (*DumpData, error) {
	var (
		d          *DumpData
		filetypeOK bool
		deviceOK   bool
		blocksSeen int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("malformed line %q", line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch {
		case key == "Filetype":
			if value != nfcFiletype {
				return nil, fmt.Errorf("unsupported filetype %q", value)
			}
			filetypeOK = true
		case key == "Device type":
			if value != nfcDeviceType {
				return nil, fmt.Errorf("unsupported device type %q", value)
			}
			deviceOK = true
		case key == "Mifare Classic type":
			cardType, err := ParseCardType(value)
			if err != nil {
				return nil, err
			}
			prev := d
			d = NewDumpData(cardType)
			if prev != nil {
				d.UID = prev.UID
				d.ATQA = prev.ATQA
				d.SAK = prev.SAK
			}
		case key == "UID":
			uid, _, err := parseByteTokens(value)
			if err != nil {
				return nil, fmt.Errorf("UID: %w", err)
			}
			if d != nil {
				d.UID = uid
			} else {
				// UID precedes the card type in the header; stash it.
				d = &DumpData{UID: uid}
			}
		case key == "ATQA":
			if d == nil {
				return nil, fmt.Errorf("ATQA before UID")
			}
			b, _, err := parseByteTokens(value)
			if err != nil || len(b) != 2 {
				return nil, fmt.Errorf("ATQA must be 2 bytes")
			}
			copy(d.ATQA[:], b)
		case key == "SAK":
			if d == nil {
				return nil, fmt.Errorf("SAK before UID")
			}
			b, _, err := parseByteTokens(value)
			if err != nil || len(b) != 1 {
				return nil, fmt.Errorf("SAK must be 1 byte")
			}
			d.SAK = b[0]
		case strings.HasPrefix(key, "Block "):
			if d == nil || d.blocks == nil {
				return nil, fmt.Errorf("block data before card type")
			}
			index, err := strconv.Atoi(strings.TrimPrefix(key, "Block "))
			if err != nil {
				return nil, fmt.Errorf("bad block index in %q", key)
			}
			if index < 0 || index >= d.Layout().TotalBlocks() {
				return nil, fmt.Errorf("block index %d out of range for %s card", index, d.Type)
			}
			if err := parseBlockLine(d, index, value); err != nil {
				return nil, fmt.Errorf("block %d: %w", index, err)
			}
			blocksSeen++
		default:
			// Version, Data format version and any future header fields
			// are accepted and ignored.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if !filetypeOK {
		return nil, fmt.Errorf("missing Filetype header")
	}
	if !deviceOK {
		return nil, fmt.Errorf("missing Device type header")
	}
	if d == nil || d.blocks == nil {
		return nil, fmt.Errorf("missing Mifare Classic type header")
	}
	if blocksSeen != d.Layout().TotalBlocks() {
		return nil, fmt.Errorf("expected %d blocks, got %d", d.Layout().TotalBlocks(), blocksSeen)
	}
	return d, nil
}

// parseBlockLine stores one block and, for trailers, derives the key-found
// flags from which key bytes are known.
func parseBlockLine(d *DumpData, index int, value string) error {
	bytes, known, err := parseByteTokens(value)
	if err != nil {
		return err
	}
	if len(bytes) != BlockSize {
		return fmt.Errorf("expected %d bytes, got %d", BlockSize, len(bytes))
	}

	var b Block
	copy(b[:], bytes)
	d.SetBlock(index, b)

	layout := d.Layout()
	if !layout.IsTrailerBlock(index) {
		return nil
	}
	sector := layout.SectorOfBlock(index)
	if allKnown(known[0:6]) {
		d.SetKeyFound(sector, KeyTypeA)
	}
	if allKnown(known[10:16]) {
		d.SetKeyFound(sector, KeyTypeB)
	}
	return nil
}

func allKnown(known []bool) bool {
	for _, k := range known {
		if !k {
			return false
		}
	}
	return true
}

// parseByteTokens parses space-separated hex byte tokens where '??' stands
// for an unknown byte (stored as zero, flagged not known).
func parseByteTokens(s string) (bytes []byte, known []bool, err error) {
	for _, tok := range strings.Fields(s) {
		if tok == unknownByteTok {
			bytes = append(bytes, 0x00)
			known = append(known, false)
			continue
		}
		v, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return nil, nil, fmt.Errorf("bad byte token %q", tok)
		}
		bytes = append(bytes, byte(v))
		known = append(known, true)
	}
	return bytes, known, nil
}

// SaveFile writes a dump back out in the Flipper NFC text format.
func SaveFile(path string, d *DumpData) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dump: %w", err)
	}
	defer f.Close()
	if err := WriteDump(f, d); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteDump serializes a dump. Trailer key bytes of sectors whose key was
// never proven are written as '??' so the key-found state survives a
// round trip.
func WriteDump(w io.Writer, d *DumpData) error {
	bw := bufio.NewWriter(w)
	layout := d.Layout()

	fmt.Fprintf(bw, "Filetype: %s\n", nfcFiletype)
	fmt.Fprintf(bw, "Version: 4\n")
	fmt.Fprintf(bw, "Device type: %s\n", nfcDeviceType)
	fmt.Fprintf(bw, "UID: %s\n", hexTokens(d.UID))
	fmt.Fprintf(bw, "ATQA: %s\n", hexTokens(d.ATQA[:]))
	fmt.Fprintf(bw, "SAK: %02X\n", d.SAK)
	fmt.Fprintf(bw, "Mifare Classic type: %s\n", d.Type)
	fmt.Fprintf(bw, "Data format version: 2\n")
	fmt.Fprintf(bw, "# Mifare Classic blocks, '??' means unknown data\n")

	for i := 0; i < layout.TotalBlocks(); i++ {
		block := d.Block(i)
		fmt.Fprintf(bw, "Block %d:", i)
		sector := layout.SectorOfBlock(i)
		trailer := layout.IsTrailerBlock(i)
		for j, v := range block {
			hidden := trailer &&
				((j < 6 && !d.KeyFound(sector, KeyTypeA)) ||
					(j >= 10 && !d.KeyFound(sector, KeyTypeB)))
			if hidden {
				bw.WriteString(" ??")
			} else {
				fmt.Fprintf(bw, " %02X", v)
			}
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func hexTokens(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, " ")
}
