package mfclassic

import "fmt"

// Block is the fixed 16-byte payload of one MIFARE Classic block.
type Block [BlockSize]byte

// DumpData is a full card image: the reference dump loaded from file, or the
// target image filled in block by block while reading a physical card.
// Key-found masks record which sector keys are usable; the reference dump
// gets them from the file, the target image gets them set as sectors are
// proven readable.
type DumpData struct {
	Type CardType

	// Anticollision identity as stored in the dump header.
	UID  []byte
	ATQA [2]byte
	SAK  byte

	blocks   []Block
	keyAMask uint64
	keyBMask uint64
}

// NewDumpData allocates an all-zero image for a card variant.
func NewDumpData(t CardType) *DumpData {
	d := &DumpData{}
	d.Reset(t)
	return d
}

// Reset zeroes every block and key-found flag and sets the card variant.
func (d *DumpData) Reset(t CardType) {
	layout := Layout{Type: t}
	d.Type = t
	d.UID = nil
	d.ATQA = [2]byte{}
	d.SAK = 0
	d.blocks = make([]Block, layout.TotalBlocks())
	d.keyAMask = 0
	d.keyBMask = 0
}

// Layout returns the geometry of the image's card variant.
func (d *DumpData) Layout() Layout {
	return Layout{Type: d.Type}
}

// Block returns the contents of an absolute block index.
func (d *DumpData) Block(index int) Block {
	d.checkBlock(index)
	return d.blocks[index]
}

// SetBlock stores the contents of an absolute block index.
func (d *DumpData) SetBlock(index int, b Block) {
	d.checkBlock(index)
	d.blocks[index] = b
}

func (d *DumpData) checkBlock(index int) {
	if index < 0 || index >= len(d.blocks) {
		panic(fmt.Sprintf("block index %d out of range [0,%d)", index, len(d.blocks)))
	}
}

// KeyFound reports whether a sector key is marked usable.
func (d *DumpData) KeyFound(sector int, t KeyType) bool {
	if t == KeyTypeB {
		return d.keyBMask&(1<<uint(sector)) != 0
	}
	return d.keyAMask&(1<<uint(sector)) != 0
}

// SetKeyFound marks a sector key usable.
func (d *DumpData) SetKeyFound(sector int, t KeyType) {
	if t == KeyTypeB {
		d.keyBMask |= 1 << uint(sector)
		return
	}
	d.keyAMask |= 1 << uint(sector)
}

// SectorKey extracts a sector key from the key material stored in the
// sector's trailer block: Key A in bytes 0-5, Key B in bytes 10-15.
func (d *DumpData) SectorKey(sector int, t KeyType) Key {
	trailer := d.Block(d.Layout().TrailerBlockOfSector(sector))
	var k Key
	if t == KeyTypeB {
		copy(k[:], trailer[10:16])
	} else {
		copy(k[:], trailer[0:6])
	}
	return k
}
