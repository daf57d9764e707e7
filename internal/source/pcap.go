package source

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/spptrace/internal/core"
	"firestige.xyz/spptrace/internal/core/btsnoop"
	"firestige.xyz/spptrace/internal/core/decoder"
)

// Bluetooth pcap link types.
const (
	LinkTypeH4         layers.LinkType = 187 // LINKTYPE_BLUETOOTH_HCI_H4
	LinkTypeH4WithPHDR layers.LinkType = 201 // LINKTYPE_BLUETOOTH_HCI_H4_WITH_PHDR
)

// PcapSource reads H4 packets from a pcap file. Records keep their packet
// type byte, so they decode in discriminator mode.
type PcapSource struct {
	r         *pcapgo.Reader
	phdr      bool
	seq       uint64
	truncated bool
}

// NewPcap reads the pcap file header.
func NewPcap(r io.Reader) (*PcapSource, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: pcap header: %v", core.ErrFormat, err)
	}

	s := &PcapSource{r: pr}
	switch pr.LinkType() {
	case LinkTypeH4WithPHDR:
		s.phdr = true
	case LinkTypeH4:
	default:
		return nil, fmt.Errorf("%w: pcap link type %d is not Bluetooth H4", core.ErrFormat, pr.LinkType())
	}
	return s, nil
}

// Header reports the H4 datalink.
func (s *PcapSource) Header() btsnoop.Header {
	return btsnoop.Header{Version: btsnoop.Version, LinkType: btsnoop.LinkTypeHCIUART}
}

// Truncated reports whether the file ended inside a packet.
func (s *PcapSource) Truncated() bool { return s.truncated }

// Next returns the next packet as a capture record. Without a direction
// pseudo-header the direction is inferred from the packet type: events are
// received, everything else is sent.
func (s *PcapSource) Next() (core.CaptureRecord, error) {
	data, ci, err := s.r.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			s.truncated = true
			return core.CaptureRecord{}, io.EOF
		}
		return core.CaptureRecord{}, err
	}

	s.seq++
	rec := core.CaptureRecord{
		Sequence:  s.seq,
		Timestamp: core.TimestampFromTime(ci.Timestamp),
	}
	orig := ci.Length

	if s.phdr {
		if len(data) < decoder.PHDRLen {
			rec.Data = []byte{}
			return rec, nil
		}
		if binary.BigEndian.Uint32(data[:decoder.PHDRLen])&1 != 0 {
			rec.Direction = core.Received
		}
		data = data[decoder.PHDRLen:]
		orig -= decoder.PHDRLen
	}

	rec.Data = data
	rec.OriginalLength = uint32(max(orig, len(data)))
	if len(data) > 0 {
		switch data[0] {
		case 0x01:
			rec.IsControl = true
		case 0x04:
			rec.IsControl = true
			if !s.phdr {
				rec.Direction = core.Received
			}
		}
	}
	return rec, nil
}
