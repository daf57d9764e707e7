package btsnoop

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"runtime"
	"testing"

	"firestige.xyz/spptrace/internal/core"
)

func buildHeader(linkType uint32) []byte {
	b := make([]byte, headerLen)
	copy(b, magic[:])
	binary.BigEndian.PutUint32(b[8:12], 1)
	binary.BigEndian.PutUint32(b[12:16], linkType)
	return b
}

func buildRecord(flags uint32, ts uint64, body []byte) []byte {
	b := make([]byte, recordHeaderLen+len(body))
	binary.BigEndian.PutUint32(b[0:4], uint32(len(body)))
	binary.BigEndian.PutUint32(b[4:8], uint32(len(body)))
	binary.BigEndian.PutUint32(b[8:12], flags)
	binary.BigEndian.PutUint64(b[16:24], ts)
	copy(b[recordHeaderLen:], body)
	return b
}

func TestNewReaderHeaderOnly(t *testing.T) {
	r, err := NewReader(bytes.NewReader(buildHeader(LinkTypeHCI)))
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	if r.Header().LinkType != LinkTypeHCI {
		t.Errorf("Expected link type %d, got %d", LinkTypeHCI, r.Header().LinkType)
	}

	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
	if r.Truncated() {
		t.Error("Expected Truncated=false for a header-only capture")
	}
}

func TestNewReaderBadMagic(t *testing.T) {
	data := buildHeader(LinkTypeHCI)
	copy(data, "pcapng\x00\x00")

	_, err := NewReader(bytes.NewReader(data))
	if !errors.Is(err, core.ErrFormat) {
		t.Errorf("Expected ErrFormat, got %v", err)
	}
}

func TestNewReaderShortHeader(t *testing.T) {
	_, err := NewReader(bytes.NewReader(magic[:]))
	if !errors.Is(err, core.ErrFormat) {
		t.Errorf("Expected ErrFormat, got %v", err)
	}
}

func TestReaderRecords(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(buildHeader(LinkTypeHCI))
	buf.Write(buildRecord(0, 100, []byte{0x01, 0x02}))
	buf.Write(buildRecord(FlagReceived|FlagControl, 200, []byte{0x0E, 0x04, 0x01, 0x03, 0x0C, 0x00}))
	buf.Write(buildRecord(FlagReceived, 300, nil))

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}

	for i, rec := range records {
		if rec.Sequence != uint64(i+1) {
			t.Errorf("record %d: expected sequence %d, got %d", i, i+1, rec.Sequence)
		}
		if rec.Timestamp != uint64(100*(i+1)) {
			t.Errorf("record %d: expected timestamp %d, got %d", i, 100*(i+1), rec.Timestamp)
		}
	}

	if records[0].Direction != core.Sent || records[0].IsControl {
		t.Errorf("record 1: expected TX data, got %s control=%v", records[0].Direction, records[0].IsControl)
	}
	if records[1].Direction != core.Received || !records[1].IsControl {
		t.Errorf("record 2: expected RX control, got %s control=%v", records[1].Direction, records[1].IsControl)
	}
	if len(records[2].Data) != 0 {
		t.Errorf("record 3: expected empty body, got %d bytes", len(records[2].Data))
	}
}

func TestReaderTruncatedTail(t *testing.T) {
	tests := []struct {
		name string
		tail []byte
	}{
		{"partial record header", buildRecord(0, 2, []byte{0xAA})[:10]},
		{"partial body", buildRecord(0, 2, []byte{0xAA, 0xBB, 0xCC})[:recordHeaderLen+1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			buf.Write(buildHeader(LinkTypeHCIUART))
			buf.Write(buildRecord(0, 1, []byte{0x02, 0x01}))
			buf.Write(tt.tail)

			r, err := NewReader(&buf)
			if err != nil {
				t.Fatalf("NewReader failed: %v", err)
			}
			records, err := r.ReadAll()
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			if len(records) != 1 {
				t.Errorf("Expected 1 complete record, got %d", len(records))
			}
			if !r.Truncated() {
				t.Error("Expected Truncated=true")
			}

			if _, err := r.Next(); err != io.EOF {
				t.Errorf("Expected io.EOF after the tail, got %v", err)
			}
		})
	}
}

// A corrupt header claiming a huge body must not be trusted for allocation.
func TestReaderOversizedLength(t *testing.T) {
	rec := buildRecord(0, 2, []byte{0xAA, 0xBB, 0xCC})
	binary.BigEndian.PutUint32(rec[4:8], 0xFFFFFFF0)

	var buf bytes.Buffer
	buf.Write(buildHeader(LinkTypeHCI))
	buf.Write(rec)

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	var ms0, ms1 runtime.MemStats
	runtime.ReadMemStats(&ms0)
	records, err := r.ReadAll()
	runtime.ReadMemStats(&ms1)

	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
	if !r.Truncated() {
		t.Error("Expected Truncated=true")
	}
	if grown := ms1.TotalAlloc - ms0.TotalAlloc; grown > 16<<20 {
		t.Errorf("Expected a bounded allocation, got %d bytes", grown)
	}
}

func TestWriterRoundTrip(t *testing.T) {
	in := []core.CaptureRecord{
		{Timestamp: 0x00E2_0000_0000_0001, Direction: core.Sent, Data: []byte{0x2A, 0x00, 0x04, 0x00}},
		{Timestamp: 0x00E2_0000_0000_0002, Direction: core.Received, IsControl: true, Data: []byte{0x0E, 0x00}, CumulativeDrops: 3},
		{Timestamp: 0x00E2_0000_0000_0003, Direction: core.Received, OriginalLength: 64, Data: []byte{0x01}},
	}

	var buf bytes.Buffer
	w, err := NewWriter(&buf, Header{LinkType: LinkTypeHCI})
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	for _, rec := range in {
		if err := w.WriteRecord(rec); err != nil {
			t.Fatalf("WriteRecord failed: %v", err)
		}
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	if r.Header().Version != Version {
		t.Errorf("Expected version %d, got %d", Version, r.Header().Version)
	}
	out, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("Expected %d records, got %d", len(in), len(out))
	}

	for i := range in {
		if out[i].Timestamp != in[i].Timestamp {
			t.Errorf("record %d: timestamp mismatch", i)
		}
		if out[i].Direction != in[i].Direction || out[i].IsControl != in[i].IsControl {
			t.Errorf("record %d: flags mismatch", i)
		}
		if out[i].CumulativeDrops != in[i].CumulativeDrops {
			t.Errorf("record %d: drops mismatch", i)
		}
		if !bytes.Equal(out[i].Data, in[i].Data) {
			t.Errorf("record %d: body mismatch", i)
		}
	}
	if out[2].OriginalLength != 64 {
		t.Errorf("Expected original length 64, got %d", out[2].OriginalLength)
	}
	if out[0].OriginalLength != 4 {
		t.Errorf("Expected original length to default to body length, got %d", out[0].OriginalLength)
	}
}

func BenchmarkReaderNext(b *testing.B) {
	var buf bytes.Buffer
	buf.Write(buildHeader(LinkTypeHCI))
	rec := buildRecord(0, 1, make([]byte, 64))
	for i := 0; i < 1024; i++ {
		buf.Write(rec)
	}
	data := buf.Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r, _ := NewReader(bytes.NewReader(data))
		for {
			if _, err := r.Next(); err != nil {
				break
			}
		}
	}
}
