package export

import (
	"encoding/hex"
	"time"

	"firestige.xyz/spptrace/internal/core"
	"firestige.xyz/spptrace/internal/core/decoder"
	"firestige.xyz/spptrace/internal/pipeline"
)

// Document is the serialized form of a decode result.
type Document struct {
	Capture  string         `json:"capture" yaml:"capture" cbor:"capture"`
	LinkType uint32         `json:"link_type" yaml:"link_type" cbor:"link_type"`
	Mode     string         `json:"mode" yaml:"mode" cbor:"mode"`
	Layout   string         `json:"layout" yaml:"layout" cbor:"layout"`
	Stats    decoder.Stats  `json:"stats" yaml:"stats" cbor:"stats"`
	Messages []Message      `json:"messages" yaml:"messages" cbor:"messages"`
	Sessions []Session      `json:"sessions" yaml:"sessions" cbor:"sessions"`
	Short    []ShortMessage `json:"short_messages" yaml:"short_messages" cbor:"short_messages"`
	Devices  []Device       `json:"devices,omitempty" yaml:"devices,omitempty" cbor:"devices,omitempty"`
}

// Message is one classified vendor message.
type Message struct {
	Sequence           uint64  `json:"sequence" yaml:"sequence" cbor:"sequence"`
	Timestamp          uint64  `json:"timestamp" yaml:"timestamp" cbor:"timestamp"`
	Time               string  `json:"time,omitempty" yaml:"time,omitempty" cbor:"time,omitempty"`
	SubchannelID       uint8   `json:"subchannel_id" yaml:"subchannel_id" cbor:"subchannel_id"`
	Direction          string  `json:"direction" yaml:"direction" cbor:"direction"`
	Layout             string  `json:"layout" yaml:"layout" cbor:"layout"`
	HeaderOffset       uint8   `json:"header_offset" yaml:"header_offset" cbor:"header_offset"`
	TotalLength        uint32  `json:"total_length" yaml:"total_length" cbor:"total_length"`
	SessionID          uint32  `json:"session_id" yaml:"session_id" cbor:"session_id"`
	MessageCounter     uint32  `json:"message_counter" yaml:"message_counter" cbor:"message_counter"`
	PayloadLengthField uint32  `json:"payload_length_field" yaml:"payload_length_field" cbor:"payload_length_field"`
	SessionIDRepeat    uint32  `json:"session_id_repeat" yaml:"session_id_repeat" cbor:"session_id_repeat"`
	Flags              uint32  `json:"flags" yaml:"flags" cbor:"flags"`
	StatusCode         uint32  `json:"status_code" yaml:"status_code" cbor:"status_code"`
	Reserved           uint32  `json:"reserved" yaml:"reserved" cbor:"reserved"`
	Payload            string  `json:"payload" yaml:"payload" cbor:"payload"` // hex
	TrailingCheck      *uint32 `json:"trailing_check" yaml:"trailing_check" cbor:"trailing_check"`
	ASCIIExcerpt       string  `json:"ascii_excerpt" yaml:"ascii_excerpt" cbor:"ascii_excerpt"`
	Fragmented         bool    `json:"fragmented,omitempty" yaml:"fragmented,omitempty" cbor:"fragmented,omitempty"`
	TypeTag            string  `json:"type_tag" yaml:"type_tag" cbor:"type_tag"`
}

// ShortMessage is a vendor frame whose header was cut short. Only the raw
// record payload is known.
type ShortMessage struct {
	Sequence     uint64 `json:"sequence" yaml:"sequence" cbor:"sequence"`
	Timestamp    uint64 `json:"timestamp" yaml:"timestamp" cbor:"timestamp"`
	SubchannelID uint8  `json:"subchannel_id" yaml:"subchannel_id" cbor:"subchannel_id"`
	Direction    string `json:"direction" yaml:"direction" cbor:"direction"`
	Layout       string `json:"layout" yaml:"layout" cbor:"layout"`
	HeaderOffset uint8  `json:"header_offset" yaml:"header_offset" cbor:"header_offset"`
	Raw          string `json:"raw" yaml:"raw" cbor:"raw"` // hex
}

// Session summarizes one session.
type Session struct {
	SessionID        uint32     `json:"session_id" yaml:"session_id" cbor:"session_id"`
	Messages         int        `json:"messages" yaml:"messages" cbor:"messages"`
	Sent             int        `json:"sent" yaml:"sent" cbor:"sent"`
	Received         int        `json:"received" yaml:"received" cbor:"received"`
	CounterMonotonic bool       `json:"counter_monotonic" yaml:"counter_monotonic" cbor:"counter_monotonic"`
	Exchanges        []Exchange `json:"exchanges" yaml:"exchanges" cbor:"exchanges"`
}

// Exchange refers to messages by record sequence number.
type Exchange struct {
	Request      *uint64 `json:"request,omitempty" yaml:"request,omitempty" cbor:"request,omitempty"`
	RequestType  string  `json:"request_type,omitempty" yaml:"request_type,omitempty" cbor:"request_type,omitempty"`
	Response     *uint64 `json:"response,omitempty" yaml:"response,omitempty" cbor:"response,omitempty"`
	ResponseType string  `json:"response_type,omitempty" yaml:"response_type,omitempty" cbor:"response_type,omitempty"`
}

// Device is a remote device seen in HCI events.
type Device struct {
	Handle    uint16 `json:"handle" yaml:"handle" cbor:"handle"`
	Address   string `json:"address" yaml:"address" cbor:"address"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty" cbor:"name,omitempty"`
	LinkType  uint8  `json:"link_type" yaml:"link_type" cbor:"link_type"`
	Encrypted bool   `json:"encrypted" yaml:"encrypted" cbor:"encrypted"`

	Disconnected bool `json:"disconnected,omitempty" yaml:"disconnected,omitempty" cbor:"disconnected,omitempty"`
}

// NewDocument flattens res for serialization.
func NewDocument(res *pipeline.Result) *Document {
	doc := &Document{
		Capture:  res.Name,
		LinkType: res.Header.LinkType,
		Mode:     res.Mode.String(),
		Layout:   res.Layout,
		Stats:    res.Stats,
		Messages: make([]Message, 0, len(res.Messages)),
		Sessions: make([]Session, 0, len(res.Sessions)),
		Short:    make([]ShortMessage, 0, len(res.Short)),
	}
	for _, cm := range res.Messages {
		doc.Messages = append(doc.Messages, newMessage(cm))
	}
	for _, s := range res.Sessions {
		doc.Sessions = append(doc.Sessions, newSession(s))
	}
	for _, m := range res.Short {
		doc.Short = append(doc.Short, ShortMessage{
			Sequence:     m.Sequence,
			Timestamp:    m.Timestamp,
			SubchannelID: m.SubchannelID,
			Direction:    m.Direction.String(),
			Layout:       m.Layout,
			HeaderOffset: m.HeaderOffset,
			Raw:          hex.EncodeToString(m.Raw),
		})
	}
	for _, d := range res.Devices {
		doc.Devices = append(doc.Devices, Device{
			Handle:       d.Handle,
			Address:      d.AddressString(),
			Name:         d.Name,
			LinkType:     d.LinkType,
			Encrypted:    d.Encrypted,
			Disconnected: d.Disconnected,
		})
	}
	return doc
}

func newMessage(cm *core.ClassifiedMessage) Message {
	m := cm.Message
	out := Message{
		Sequence:           m.Sequence,
		Timestamp:          m.Timestamp,
		SubchannelID:       m.SubchannelID,
		Direction:          m.Direction.String(),
		Layout:             m.Layout,
		HeaderOffset:       m.HeaderOffset,
		TotalLength:        m.TotalLength,
		SessionID:          m.SessionID,
		MessageCounter:     m.MessageCounter,
		PayloadLengthField: m.PayloadLengthField,
		SessionIDRepeat:    m.SessionIDRepeat,
		Flags:              m.Flags,
		StatusCode:         m.StatusCode,
		Reserved:           m.Reserved,
		Payload:            hex.EncodeToString(m.Payload),
		TrailingCheck:      m.TrailingCheck,
		ASCIIExcerpt:       m.ASCIIExcerpt,
		Fragmented:         m.Fragmented,
		TypeTag:            cm.TypeTag,
	}
	rec := core.CaptureRecord{Timestamp: m.Timestamp}
	if t := rec.Time(); !t.IsZero() {
		out.Time = t.Format(time.RFC3339Nano)
	}
	return out
}

func newSession(s *core.Session) Session {
	out := Session{
		SessionID:        s.ID,
		Messages:         len(s.Messages),
		Sent:             len(s.Sent),
		Received:         len(s.Received),
		CounterMonotonic: s.CounterMonotonic(),
	}
	for _, ex := range s.Exchanges() {
		var e Exchange
		if ex.Request != nil {
			seq := ex.Request.Message.Sequence
			e.Request, e.RequestType = &seq, ex.Request.TypeTag
		}
		if ex.Response != nil {
			seq := ex.Response.Message.Sequence
			e.Response, e.ResponseType = &seq, ex.Response.TypeTag
		}
		out.Exchanges = append(out.Exchanges, e)
	}
	return out
}
