// Package source opens capture streams of the supported container formats.
package source

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"firestige.xyz/spptrace/internal/core"
	"firestige.xyz/spptrace/internal/core/btsnoop"
)

// Source yields capture records in file order.
type Source interface {
	// Header describes the records as if they came from a btsnoop file.
	Header() btsnoop.Header
	// Next returns the next record or io.EOF.
	Next() (core.CaptureRecord, error)
	// Truncated reports whether the stream ended inside a record.
	Truncated() bool
}

// Pcap magic numbers, microsecond and nanosecond resolution.
const (
	pcapMagicMicro uint32 = 0xa1b2c3d4
	pcapMagicNano  uint32 = 0xa1b23c4d
)

// Open sniffs the container format of r: btsnoop or pcap. Anything else
// yields an error wrapping core.ErrFormat.
func Open(r io.Reader) (Source, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(8)

	switch {
	case btsnoop.HasMagic(head):
		return btsnoop.NewReader(br)
	case isPcap(head):
		return NewPcap(br)
	default:
		return nil, fmt.Errorf("%w: unknown container magic % X", core.ErrFormat, head)
	}
}

func isPcap(b []byte) bool {
	if len(b) < 4 {
		return false
	}
	for _, m := range []uint32{binary.LittleEndian.Uint32(b), binary.BigEndian.Uint32(b)} {
		if m == pcapMagicMicro || m == pcapMagicNano {
			return true
		}
	}
	return false
}
