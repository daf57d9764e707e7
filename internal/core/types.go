// Package core defines core types with zero external dependencies.
package core

import "fmt"

// LinkKind is the HCI packet class of a capture record.
type LinkKind uint8

const (
	KindCommand LinkKind = iota + 1
	KindData
	KindVoice // SCO, only distinguishable when the body carries a type byte
	KindEvent
)

func (k LinkKind) String() string {
	switch k {
	case KindCommand:
		return "COMMAND"
	case KindData:
		return "DATA"
	case KindVoice:
		return "VOICE"
	case KindEvent:
		return "EVENT"
	default:
		return fmt.Sprintf("KIND(%d)", uint8(k))
	}
}

// LinkFrame is a classified capture record.
type LinkFrame struct {
	Record CaptureRecord
	Kind   LinkKind
	Body   []byte // record data without the packet type byte, if any
}

// PacketFrame is an ACL segment carrying one L2CAP basic frame.
type PacketFrame struct {
	Record    CaptureRecord
	Handle    uint16 // 12-bit connection handle
	Boundary  uint8  // packet boundary flag (bits 12-13)
	Broadcast uint8  // broadcast flag (bits 14-15)
	ChannelID uint16
	Payload   []byte
}

// FrameType is an RFCOMM control field with the P/F bit cleared.
type FrameType uint8

const (
	FrameInfoNumbered   FrameType = 0x03 // UI
	FrameDisconnected   FrameType = 0x0F // DM
	FrameSetupRequest   FrameType = 0x2F // SABM
	FrameDisconnect     FrameType = 0x43 // DISC
	FrameSetupAck       FrameType = 0x63 // UA
	FrameInfoUnnumbered FrameType = 0xEF // UIH
)

// Known reports whether t is one of the fixed frame type codes.
func (t FrameType) Known() bool {
	switch t {
	case FrameInfoNumbered, FrameDisconnected, FrameSetupRequest,
		FrameDisconnect, FrameSetupAck, FrameInfoUnnumbered:
		return true
	}
	return false
}

func (t FrameType) String() string {
	switch t {
	case FrameInfoNumbered:
		return "UI"
	case FrameDisconnected:
		return "DM"
	case FrameSetupRequest:
		return "SABM"
	case FrameDisconnect:
		return "DISC"
	case FrameSetupAck:
		return "UA"
	case FrameInfoUnnumbered:
		return "UIH"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", uint8(t))
	}
}

// SubchannelFrame is an RFCOMM frame on a dynamic L2CAP channel.
type SubchannelFrame struct {
	Packet          PacketFrame
	AddressByte     uint8
	ControlByte     uint8
	SubchannelID    uint8 // DLCI, top 6 bits of the address byte
	CommandResponse bool
	PollFinal       bool
	Type            FrameType
	Payload         []byte // nil unless Type == FrameInfoUnnumbered
}

// VendorMessage is one frame of the adapter's application protocol.
type VendorMessage struct {
	Sequence     uint64 // capture record the message came from
	Timestamp    uint64
	SubchannelID uint8
	Direction    Direction

	Layout             string
	HeaderOffset       uint8
	TotalLength        uint32
	SessionID          uint32
	MessageCounter     uint32
	PayloadLengthField uint32
	SessionIDRepeat    uint32
	Flags              uint32
	StatusCode         uint32
	Reserved           uint32
	Payload            []byte
	TrailingCheck      *uint32
	ASCIIExcerpt       string

	Short      bool // magic found but header incomplete; only Raw is set
	Fragmented bool // declared length runs past the end of the record
	Raw        []byte
}

// ClassifiedMessage is a vendor message with its inferred type.
type ClassifiedMessage struct {
	Message *VendorMessage
	TypeTag string
}

// Exchange is an advisory request/response pairing inside a session.
type Exchange struct {
	Request  *ClassifiedMessage
	Response *ClassifiedMessage
}

// Device is what HCI events reveal about a remote device on a connection handle.
type Device struct {
	Handle    uint16
	Address   [6]byte // little-endian as carried on the wire
	Name      string
	LinkType  uint8
	Encrypted bool

	Disconnected     bool
	DisconnectReason uint8 // HCI error code from Disconnection Complete
}

// AddressString formats the BD_ADDR most-significant byte first.
func (d Device) AddressString() string {
	a := d.Address
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[5], a[4], a[3], a[2], a[1], a[0])
}
