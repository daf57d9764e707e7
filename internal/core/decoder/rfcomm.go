package decoder

import (
	"fmt"

	"firestige.xyz/spptrace/internal/core"
)

const rfcommMinLen = 3 // address + control + first length byte

// DecodeLength decodes the RFCOMM length indicator at data[2:]. It returns
// the information length and the offset where the information field starts.
func DecodeLength(data []byte) (length, start int, err error) {
	if len(data) < rfcommMinLen {
		return 0, 0, fmt.Errorf("%w: frame wants %d bytes, have %d", core.ErrTruncated, rfcommMinLen, len(data))
	}
	b0 := data[2]
	if b0&0x01 != 0 {
		return int(b0 >> 1), 3, nil
	}
	if len(data) < 4 {
		return 0, 0, fmt.Errorf("%w: two-byte length indicator cut short", core.ErrTruncated)
	}
	return int(b0>>1) | int(data[3])<<7, 4, nil
}

// Subchannels decodes RFCOMM frames above a channel id threshold.
type Subchannels struct {
	MinChannelID uint16
}

// DecodeSubchannel decodes pkt as an RFCOMM frame using the default
// dynamic channel threshold.
func DecodeSubchannel(pkt core.PacketFrame) (core.SubchannelFrame, error) {
	return Subchannels{MinChannelID: DynamicChannelBase}.Decode(pkt)
}

// Decode decodes one RFCOMM frame. Only UIH frames carry a payload.
func (s Subchannels) Decode(pkt core.PacketFrame) (core.SubchannelFrame, error) {
	sf := core.SubchannelFrame{Packet: pkt}
	if pkt.ChannelID < s.MinChannelID {
		return sf, fmt.Errorf("%w: fixed channel 0x%04X", core.ErrNotRecognized, pkt.ChannelID)
	}

	data := pkt.Payload
	if len(data) < rfcommMinLen {
		return sf, fmt.Errorf("%w: frame wants %d bytes, have %d", core.ErrTruncated, rfcommMinLen, len(data))
	}

	sf.AddressByte = data[0]
	sf.ControlByte = data[1]
	sf.SubchannelID = data[0] >> 2
	sf.CommandResponse = data[0]&0x02 != 0
	sf.PollFinal = data[1]&0x10 != 0
	sf.Type = core.FrameType(data[1] & 0xEF)

	if sf.Type != core.FrameInfoUnnumbered {
		return sf, nil
	}

	length, start, err := DecodeLength(data)
	if err != nil {
		return sf, err
	}
	if length == 0 {
		return sf, fmt.Errorf("%w: empty UIH frame on DLCI %d", core.ErrNotRecognized, sf.SubchannelID)
	}
	if start+length > len(data) {
		return sf, fmt.Errorf("%w: UIH wants %d bytes, have %d", core.ErrTruncated, length, len(data)-start)
	}
	sf.Payload = data[start : start+length]
	return sf, nil
}
