package btsnoop

import (
	"encoding/binary"
	"fmt"
	"io"

	"firestige.xyz/spptrace/internal/core"
)

// Writer produces btsnoop files.
type Writer struct {
	w   io.Writer
	buf [recordHeaderLen]byte
}

// NewWriter writes the file header. A zero Version is written as Version.
func NewWriter(w io.Writer, h Header) (*Writer, error) {
	if h.Version == 0 {
		h.Version = Version
	}
	var hdr [headerLen]byte
	copy(hdr[0:8], magic[:])
	binary.BigEndian.PutUint32(hdr[8:12], h.Version)
	binary.BigEndian.PutUint32(hdr[12:16], h.LinkType)
	if _, err := w.Write(hdr[:]); err != nil {
		return nil, fmt.Errorf("write btsnoop header: %w", err)
	}
	return &Writer{w: w}, nil
}

// WriteRecord writes one record. Flags are rebuilt from Direction and
// IsControl; other flag bits are carried over. A zero OriginalLength is
// written as the body length.
func (w *Writer) WriteRecord(rec core.CaptureRecord) error {
	flags := rec.Flags &^ (FlagReceived | FlagControl)
	if rec.Direction == core.Received {
		flags |= FlagReceived
	}
	if rec.IsControl {
		flags |= FlagControl
	}
	orig := rec.OriginalLength
	if orig == 0 {
		orig = uint32(len(rec.Data))
	}

	h := w.buf[:]
	binary.BigEndian.PutUint32(h[0:4], orig)
	binary.BigEndian.PutUint32(h[4:8], uint32(len(rec.Data)))
	binary.BigEndian.PutUint32(h[8:12], flags)
	binary.BigEndian.PutUint32(h[12:16], rec.CumulativeDrops)
	binary.BigEndian.PutUint64(h[16:24], rec.Timestamp)

	if _, err := w.w.Write(h); err != nil {
		return fmt.Errorf("write record header: %w", err)
	}
	if _, err := w.w.Write(rec.Data); err != nil {
		return fmt.Errorf("write record body: %w", err)
	}
	return nil
}
