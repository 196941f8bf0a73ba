package mfclassic

import "fmt"

// CardType identifies a fixed MIFARE Classic memory variant.
type CardType int

const (
	CardTypeMini CardType = iota // 5 sectors, 20 blocks (320 bytes)
	CardType1K                   // 16 sectors, 64 blocks (1 KiB)
	CardType4K                   // 40 sectors, 256 blocks (4 KiB)
)

// BlockSize is the fixed payload size of every MIFARE Classic block.
const BlockSize = 16

// smallSectorBlocks is the block count of sectors 0..31; 4K cards append
// eight large sectors of largeSectorBlocks blocks starting at block 128.
const (
	smallSectorBlocks = 4
	largeSectorBlocks = 16
	smallSectorCount  = 32
	smallAreaBlocks   = smallSectorCount * smallSectorBlocks
)

func (t CardType) String() string {
	switch t {
	case CardTypeMini:
		return "Mini"
	case CardType1K:
		return "1K"
	case CardType4K:
		return "4K"
	default:
		return fmt.Sprintf("CardType(%d)", int(t))
	}
}

// ParseCardType parses the variant name used by Flipper dump files
// ("MINI", "1K", "4K", case-insensitive).
func ParseCardType(s string) (CardType, error) {
	switch s {
	case "MINI", "Mini", "mini":
		return CardTypeMini, nil
	case "1K", "1k":
		return CardType1K, nil
	case "4K", "4k":
		return CardType4K, nil
	default:
		return 0, fmt.Errorf("unknown Mifare Classic type %q", s)
	}
}

// Layout describes the sector/block geometry of a card variant. All methods
// are pure functions of the variant; every block index in [0, TotalBlocks)
// maps to exactly one sector.
type Layout struct {
	Type CardType
}

// LayoutFor returns the layout for a card variant.
func LayoutFor(t CardType) (Layout, error) {
	switch t {
	case CardTypeMini, CardType1K, CardType4K:
		return Layout{Type: t}, nil
	default:
		return Layout{}, fmt.Errorf("unsupported card type %d", int(t))
	}
}

// TotalSectors returns the sector count of the variant.
func (l Layout) TotalSectors() int {
	switch l.Type {
	case CardTypeMini:
		return 5
	case CardType1K:
		return 16
	default:
		return 40
	}
}

// TotalBlocks returns the block count of the variant.
func (l Layout) TotalBlocks() int {
	switch l.Type {
	case CardTypeMini:
		return 20
	case CardType1K:
		return 64
	default:
		return 256
	}
}

// FirstBlockOfSector returns the absolute index of the first block of a sector.
func (l Layout) FirstBlockOfSector(sector int) int {
	if sector < smallSectorCount {
		return sector * smallSectorBlocks
	}
	return smallAreaBlocks + (sector-smallSectorCount)*largeSectorBlocks
}

// BlocksInSector returns the number of blocks in a sector (4 or, on the
// upper area of 4K cards, 16).
func (l Layout) BlocksInSector(sector int) int {
	if sector < smallSectorCount {
		return smallSectorBlocks
	}
	return largeSectorBlocks
}

// SectorOfBlock returns the sector containing an absolute block index.
func (l Layout) SectorOfBlock(block int) int {
	if block < smallAreaBlocks {
		return block / smallSectorBlocks
	}
	return smallSectorCount + (block-smallAreaBlocks)/largeSectorBlocks
}

// TrailerBlockOfSector returns the absolute index of a sector's trailer
// block, the last block of the sector holding Key A, the access conditions
// and Key B.
func (l Layout) TrailerBlockOfSector(sector int) int {
	return l.FirstBlockOfSector(sector) + l.BlocksInSector(sector) - 1
}

// IsTrailerBlock reports whether an absolute block index is a sector trailer.
func (l Layout) IsTrailerBlock(block int) bool {
	return l.TrailerBlockOfSector(l.SectorOfBlock(block)) == block
}
