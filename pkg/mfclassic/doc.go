/*
Package mfclassic verifies that data written to a MIFARE-Classic-compatible
card matches a previously captured dump.

A write operation to such a card may have completed with the card holding
either its original sector keys or the well-known all-0xFF "magic" transport
key (magic and freshly unlocked cards accept it regardless of configuration).
Verification therefore cannot assume which credential opens each sector, and
cannot demand byte equality for the fields a legitimate write is expected to
change. This package provides the full procedure:

  - per-sector key selection with a guaranteed magic fallback
  - authenticated block reads with bounded timeout retry and periodic
    re-authentication
  - a run-scoped progress/diagnostics tracker read by the presentation layer
  - a structural comparison that excludes the manufacturer block and the
    sector trailers
  - a workflow state machine driving detection, reading and comparison

# Card geometry

A card's storage is partitioned into sectors of fixed 16-byte blocks; the
last block of each sector is the trailer holding Key A, the access condition
bits and Key B:

	Mini  5 sectors x 4 blocks  =  20 blocks
	1K   16 sectors x 4 blocks  =  64 blocks
	4K   32 sectors x 4 blocks
	    + 8 sectors x 16 blocks = 256 blocks

All geometry questions (first block of a sector, sector of a block, trailer
detection) are pure functions on Layout.

# Verification procedure

For every sector, candidates are tried in strict priority order: the dump's
Key A if the dump marks it found, then the dump's Key B if found, then the
magic 0xFF key as type A, which is always present so the list is never
empty. A rejected
candidate is not retried; the next one is tried. Once a candidate
authenticates, every block of the sector is read in ascending order under
that same candidate: the session is re-established every two blocks, block
reads get up to 3 attempts with a short pause but only for timeout-class
failures, and any partial result is discarded when the candidate fails. A
sector that exhausts all candidates is recorded as failed and the run
continues with the remaining sectors.

The comparison then walks every block index. Block 0 carries the
manufacturer/UID data and is excluded; trailers are excluded because their
key material legitimately differs between the magic-key and restored-key
states. Everything else must match byte for byte. The walk never stops
early, so the compared/differing counts in the DifferenceReport are exact.

# PC/SC transport

PCSCAdapter drives a real reader through the contactless storage pseudo-APDU
set:

	LOAD KEY              FF 82 00 00 06 <key6>
	GENERAL AUTHENTICATE  FF 86 00 00 05 01 00 <block> <60|61> 00
	READ BINARY           FF B0 00 <block> 10

	SW=9000  success
	SW=6300  failed (authentication rejected, or read without valid auth)

Card arrival is detected with GetStatusChange on a background poller; all
card I/O stays on the goroutine running the workflow.

# Dump format

Reference dumps are Flipper NFC files ("Filetype: Flipper NFC device",
device type "Mifare Classic"): header fields, then one "Block N:" line per
block where a '??' token marks a byte the original capture never recovered.
A sector key is considered usable only when all six of its trailer bytes
are known.
*/
package mfclassic
