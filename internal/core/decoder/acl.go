package decoder

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/spptrace/internal/core"
)

const (
	aclHeaderLen   = 4
	l2capHeaderLen = 4

	// DynamicChannelBase is the first dynamically allocated L2CAP channel id.
	DynamicChannelBase = 0x0040
)

var channelNames = map[uint16]string{
	0x0001: "L2CAP Signaling",
	0x0002: "Connectionless",
	0x0003: "AMP Manager",
	0x0004: "ATT",
	0x0005: "LE Signaling",
	0x0006: "SMP",
}

// ChannelName returns a display name for an L2CAP channel id.
func ChannelName(cid uint16) string {
	if name, ok := channelNames[cid]; ok {
		return name
	}
	if cid >= DynamicChannelBase {
		return "Dynamic Channel"
	}
	return "Reserved"
}

// DecodePacket extracts the ACL header and the L2CAP basic frame from a data
// record. Only the first L2CAP frame of the segment is decoded.
func DecodePacket(frame core.LinkFrame) (core.PacketFrame, error) {
	pkt := core.PacketFrame{Record: frame.Record}
	if frame.Kind != core.KindData {
		return pkt, fmt.Errorf("%w: %s record", core.ErrNotRecognized, frame.Kind)
	}

	data := frame.Body
	if len(data) < aclHeaderLen {
		return pkt, fmt.Errorf("%w: ACL header wants %d bytes, have %d", core.ErrTruncated, aclHeaderLen, len(data))
	}

	// Handle (12 bits) | PB flag (2 bits) | BC flag (2 bits), little-endian.
	hf := binary.LittleEndian.Uint16(data[0:2])
	pkt.Handle = hf & 0x0FFF
	pkt.Boundary = uint8(hf>>12) & 0x03
	pkt.Broadcast = uint8(hf>>14) & 0x03

	segLen := int(binary.LittleEndian.Uint16(data[2:4]))
	if len(data) < aclHeaderLen+segLen {
		return pkt, fmt.Errorf("%w: segment wants %d bytes, have %d", core.ErrTruncated, segLen, len(data)-aclHeaderLen)
	}
	seg := data[aclHeaderLen : aclHeaderLen+segLen]

	if len(seg) < l2capHeaderLen {
		return pkt, fmt.Errorf("%w: L2CAP header wants %d bytes, have %d", core.ErrTruncated, l2capHeaderLen, len(seg))
	}
	l2Len := int(binary.LittleEndian.Uint16(seg[0:2]))
	pkt.ChannelID = binary.LittleEndian.Uint16(seg[2:4])
	if len(seg) < l2capHeaderLen+l2Len {
		return pkt, fmt.Errorf("%w: L2CAP payload wants %d bytes, have %d", core.ErrTruncated, l2Len, len(seg)-l2capHeaderLen)
	}
	pkt.Payload = seg[l2capHeaderLen : l2capHeaderLen+l2Len]

	return pkt, nil
}
