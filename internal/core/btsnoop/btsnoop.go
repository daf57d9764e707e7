// Package btsnoop reads and writes btsnoop capture files.
//
// File layout (all integers big-endian):
//
//	magic "btsnoop\0" | version u32 | datalink u32
//	{ original_length u32 | included_length u32 | flags u32 | drops u32 | timestamp u64 | body }*
package btsnoop

const (
	headerLen       = 16
	recordHeaderLen = 24

	// Version is the only version written by Writer.
	Version = 1
)

// Datalink types.
const (
	LinkTypeHCI       uint32 = 1001 // un-encapsulated HCI, packet type in record flags
	LinkTypeHCIUART   uint32 = 1002 // H4, packet type byte leads the body
	LinkTypeHCIBSCP   uint32 = 1003
	LinkTypeHCISerial uint32 = 1004
)

// Record flag bits.
const (
	FlagReceived uint32 = 1 << 0
	FlagControl  uint32 = 1 << 1
)

var magic = [8]byte{'b', 't', 's', 'n', 'o', 'o', 'p', 0}

// Header is the capture file header.
type Header struct {
	Version  uint32
	LinkType uint32
}

// HasMagic reports whether b starts with the btsnoop file magic.
func HasMagic(b []byte) bool {
	return len(b) >= len(magic) && string(b[:len(magic)]) == string(magic[:])
}
