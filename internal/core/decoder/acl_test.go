package decoder

import (
	"bytes"
	"errors"
	"testing"

	"firestige.xyz/spptrace/internal/core"
)

func TestDecodePacket(t *testing.T) {
	body := buildACL(0x0B, 0x0041, []byte{0x0B, 0xEF, 0x03, 0x41, 0x9A})
	frame := core.LinkFrame{Kind: core.KindData, Body: body}

	pkt, err := DecodePacket(frame)
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}
	if pkt.Handle != 0x0B {
		t.Errorf("Expected handle 0x0B, got 0x%X", pkt.Handle)
	}
	if pkt.Boundary != 2 {
		t.Errorf("Expected boundary flag 2, got %d", pkt.Boundary)
	}
	if pkt.Broadcast != 0 {
		t.Errorf("Expected broadcast flag 0, got %d", pkt.Broadcast)
	}
	if pkt.ChannelID != 0x0041 {
		t.Errorf("Expected CID 0x0041, got 0x%04X", pkt.ChannelID)
	}
	if !bytes.Equal(pkt.Payload, []byte{0x0B, 0xEF, 0x03, 0x41, 0x9A}) {
		t.Errorf("Unexpected payload % X", pkt.Payload)
	}
}

func TestDecodePacketTruncated(t *testing.T) {
	full := buildACL(1, 0x0040, []byte{1, 2, 3, 4, 5, 6})

	tests := []struct {
		name string
		body []byte
	}{
		{"no ACL header", full[:3]},
		{"short segment", full[:len(full)-1]},
		{"no L2CAP header", []byte{0x01, 0x00, 0x02, 0x00, 0x06, 0x00}},
		{"short L2CAP payload", []byte{0x01, 0x00, 0x06, 0x00, 0x08, 0x00, 0x40, 0x00, 0xAA, 0xBB}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePacket(core.LinkFrame{Kind: core.KindData, Body: tt.body})
			if !errors.Is(err, core.ErrTruncated) {
				t.Errorf("Expected ErrTruncated, got %v", err)
			}
		})
	}
}

func TestDecodePacketNotData(t *testing.T) {
	_, err := DecodePacket(core.LinkFrame{Kind: core.KindEvent, Body: []byte{0x0E, 0x00}})
	if !errors.Is(err, core.ErrNotRecognized) {
		t.Errorf("Expected ErrNotRecognized, got %v", err)
	}
}

// The body 00 01 00 08 00 00 04 00 EF AA BB CC carries handle 1 and an
// eight byte segment once a one byte packet indicator precedes it, but only
// seven segment bytes follow.
func TestDecodePacketSegmentShortfall(t *testing.T) {
	body := []byte{0x00, 0x01, 0x00, 0x08, 0x00, 0x00, 0x04, 0x00, 0xEF, 0xAA, 0xBB, 0xCC}

	// Taken as an H4 record, the leading 0x00 is not a packet type.
	if _, err := ClassifyRecord(core.CaptureRecord{Data: body}, ModeDiscriminator); !errors.Is(err, core.ErrNotRecognized) {
		t.Errorf("Expected ErrNotRecognized at the link stage, got %v", err)
	}

	h4 := append([]byte{0x02}, body[1:]...)
	frame, err := ClassifyRecord(core.CaptureRecord{Data: h4}, ModeDiscriminator)
	if err != nil {
		t.Fatalf("ClassifyRecord failed: %v", err)
	}
	pkt, err := DecodePacket(frame)
	if pkt.Handle != 1 {
		t.Errorf("Expected handle 1, got %d", pkt.Handle)
	}
	if !errors.Is(err, core.ErrTruncated) {
		t.Errorf("Expected ErrTruncated, got %v", err)
	}

	// Read as a raw datalink 1001 body the handle/length words differ and the
	// declared segment is far longer than the record.
	_, err = DecodePacket(core.LinkFrame{Kind: core.KindData, Body: body})
	if !errors.Is(err, core.ErrTruncated) {
		t.Errorf("Expected ErrTruncated, got %v", err)
	}
}

func TestChannelName(t *testing.T) {
	tests := map[uint16]string{
		0x0001: "L2CAP Signaling",
		0x0002: "Connectionless",
		0x0003: "AMP Manager",
		0x0004: "ATT",
		0x0005: "LE Signaling",
		0x0006: "SMP",
		0x0007: "Reserved",
		0x003F: "Reserved",
		0x0040: "Dynamic Channel",
		0xFFFF: "Dynamic Channel",
	}
	for cid, want := range tests {
		if got := ChannelName(cid); got != want {
			t.Errorf("CID 0x%04X: expected %q, got %q", cid, want, got)
		}
	}
}

func BenchmarkDecodePacket(b *testing.B) {
	frame := core.LinkFrame{Kind: core.KindData, Body: buildACL(1, 0x0040, make([]byte, 120))}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = DecodePacket(frame)
	}
}
