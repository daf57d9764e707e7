package decoder

import (
	"encoding/binary"

	"firestige.xyz/spptrace/internal/core"
)

// buildACL wraps an L2CAP payload in ACL and L2CAP basic headers.
func buildACL(handle uint16, cid uint16, payload []byte) []byte {
	seg := make([]byte, l2capHeaderLen+len(payload))
	binary.LittleEndian.PutUint16(seg[0:2], uint16(len(payload)))
	binary.LittleEndian.PutUint16(seg[2:4], cid)
	copy(seg[l2capHeaderLen:], payload)

	pkt := make([]byte, aclHeaderLen+len(seg))
	binary.LittleEndian.PutUint16(pkt[0:2], handle|0x2000) // first automatically flushable
	binary.LittleEndian.PutUint16(pkt[2:4], uint16(len(seg)))
	copy(pkt[aclHeaderLen:], seg)
	return pkt
}

// buildUIH builds an RFCOMM UIH frame with a one or two byte length
// indicator. The trailing FCS byte is included.
func buildUIH(dlci uint8, info []byte) []byte {
	frame := []byte{dlci<<2 | 0x03, byte(core.FrameInfoUnnumbered)}
	if len(info) < 128 {
		frame = append(frame, byte(len(info))<<1|0x01)
	} else {
		frame = append(frame, byte(len(info))<<1, byte(len(info)>>7))
	}
	frame = append(frame, info...)
	return append(frame, 0x9A)
}

type vendorFields struct {
	session, counter, flags, status, reserved uint32
	payloadLen                                uint32
}

// buildSplit builds a vendor message in the split layout with a trailing check.
func buildSplit(f vendorFields, payload []byte) []byte {
	b := make([]byte, 36+len(payload)+4)
	copy(b, vendorMagic)
	binary.LittleEndian.PutUint32(b[4:], uint32(36+len(payload)))
	binary.LittleEndian.PutUint32(b[8:], f.session)
	binary.LittleEndian.PutUint32(b[12:], f.counter)
	binary.LittleEndian.PutUint32(b[16:], f.payloadLen)
	binary.LittleEndian.PutUint32(b[20:], f.session)
	binary.LittleEndian.PutUint32(b[24:], f.flags)
	binary.LittleEndian.PutUint32(b[28:], f.status)
	binary.LittleEndian.PutUint32(b[32:], f.reserved)
	copy(b[36:], payload)
	binary.LittleEndian.PutUint32(b[36+len(payload):], 0xDEADBEEF)
	return b
}

func dataRecord(seq uint64, dir core.Direction, body []byte) core.CaptureRecord {
	return core.CaptureRecord{Sequence: seq, Timestamp: 1000 + seq, Direction: dir, Data: body}
}
