package btsnoop

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"firestige.xyz/spptrace/internal/core"
)

// initialBodyCap bounds the up-front allocation for a record body.
const initialBodyCap = 64 << 10

// Reader pulls capture records one at a time.
type Reader struct {
	r         *bufio.Reader
	header    Header
	seq       uint64
	truncated bool
	buf       [recordHeaderLen]byte
}

// NewReader reads the file header. A magic mismatch or a header shorter than
// 16 bytes yields an error wrapping core.ErrFormat.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)

	var hdr [headerLen]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: header: %v", core.ErrFormat, err)
	}
	if !bytes.Equal(hdr[0:8], magic[:]) {
		return nil, fmt.Errorf("%w: bad magic %q", core.ErrFormat, hdr[0:8])
	}

	return &Reader{
		r: br,
		header: Header{
			Version:  binary.BigEndian.Uint32(hdr[8:12]),
			LinkType: binary.BigEndian.Uint32(hdr[12:16]),
		},
	}, nil
}

// Header returns the file header.
func (r *Reader) Header() Header { return r.header }

// Truncated reports whether the stream ended inside a record.
func (r *Reader) Truncated() bool { return r.truncated }

// Next returns the next record, or io.EOF once the stream is exhausted. A
// trailing partial record ends the sequence without being returned.
func (r *Reader) Next() (core.CaptureRecord, error) {
	n, err := io.ReadFull(r.r, r.buf[:])
	if err != nil {
		if n > 0 {
			r.truncated = true
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return core.CaptureRecord{}, io.EOF
		}
		return core.CaptureRecord{}, err
	}

	h := r.buf[:]
	rec := core.CaptureRecord{
		OriginalLength:  binary.BigEndian.Uint32(h[0:4]),
		Flags:           binary.BigEndian.Uint32(h[8:12]),
		CumulativeDrops: binary.BigEndian.Uint32(h[12:16]),
		Timestamp:       binary.BigEndian.Uint64(h[16:24]),
	}
	included := binary.BigEndian.Uint32(h[4:8])

	// The declared length is untrusted; memory grows with the bytes
	// actually present.
	var body bytes.Buffer
	body.Grow(int(min(included, initialBodyCap)))
	n64, err := body.ReadFrom(io.LimitReader(r.r, int64(included)))
	if err != nil {
		return core.CaptureRecord{}, err
	}
	if n64 < int64(included) {
		r.truncated = true
		return core.CaptureRecord{}, io.EOF
	}
	rec.Data = body.Bytes()

	if rec.Flags&FlagReceived != 0 {
		rec.Direction = core.Received
	}
	rec.IsControl = rec.Flags&FlagControl != 0

	r.seq++
	rec.Sequence = r.seq
	return rec, nil
}

// ReadAll drains the reader. Intended for small captures and tests.
func (r *Reader) ReadAll() ([]core.CaptureRecord, error) {
	var out []core.CaptureRecord
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
