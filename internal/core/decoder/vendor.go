package decoder

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"firestige.xyz/spptrace/internal/core"
)

var vendorMagic = []byte{0x55, 0x55, 0xAA, 0xAA}

// FindMagic locates the vendor magic. Sent data must start with it; received
// data may carry one leading zero byte, which is tried first.
func FindMagic(data []byte, dir core.Direction) (int, bool) {
	if dir == core.Received && len(data) > len(vendorMagic) && data[0] == 0x00 &&
		bytes.Equal(data[1:1+len(vendorMagic)], vendorMagic) {
		return 1, true
	}
	if bytes.HasPrefix(data, vendorMagic) {
		return 0, true
	}
	return 0, false
}

// ParseVendor decodes a vendor message from an RFCOMM payload using layout.
//
// A payload without the magic yields core.ErrNotRecognized. A payload that
// has the magic but not a full header yields a message with Short set and
// core.ErrShortMessage; callers keep the message.
func ParseVendor(data []byte, dir core.Direction, layout Layout) (*core.VendorMessage, error) {
	pos, ok := FindMagic(data, dir)
	if !ok {
		return nil, fmt.Errorf("%w: no vendor magic", core.ErrNotRecognized)
	}

	msg := &core.VendorMessage{
		Direction:    dir,
		Layout:       layout.Name,
		HeaderOffset: uint8(pos),
		Raw:          data,
	}
	if layout.PastMagic {
		msg.HeaderOffset += uint8(len(vendorMagic))
	}

	if len(data) < pos+layout.MinLength {
		msg.Short = true
		return msg, fmt.Errorf("%w: have %d bytes after offset %d, want %d",
			core.ErrShortMessage, len(data)-pos, pos, layout.MinLength)
	}

	u32 := func(off int) uint32 {
		return binary.LittleEndian.Uint32(data[pos+off : pos+off+4])
	}
	msg.TotalLength = u32(layout.TotalLength)
	msg.SessionID = u32(layout.SessionID)
	msg.MessageCounter = u32(layout.MessageCounter)
	msg.PayloadLengthField = u32(layout.PayloadLength)
	msg.SessionIDRepeat = u32(layout.SessionIDRepeat)
	msg.Flags = u32(layout.Flags)
	msg.StatusCode = u32(layout.StatusCode)
	msg.Reserved = u32(layout.Reserved)

	start := pos + layout.PayloadStart
	end := len(data)
	if layout.Bounded {
		end = pos + int(msg.TotalLength)
	}

	if end > start && end <= len(data) {
		msg.Payload = data[start:end]
		if layout.Bounded && end+4 <= len(data) {
			check := binary.LittleEndian.Uint32(data[end : end+4])
			msg.TrailingCheck = &check
		}
		msg.ASCIIExcerpt = ASCIIExcerpt(msg.Payload)
	} else if end > len(data) {
		msg.Fragmented = true
	}

	return msg, nil
}
