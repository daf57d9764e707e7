package decoder

import (
	"errors"
	"slices"

	"firestige.xyz/spptrace/internal/core"
)

// Stage names where decoding of a record stopped.
const (
	StageLink       = "link"
	StageEvent      = "event"
	StagePacket     = "packet"
	StageSubchannel = "subchannel"
	StageVendor     = "vendor"
)

// Drop reasons.
const (
	ReasonTruncated     = "truncated"
	ReasonNotRecognized = "not_recognized"
	ReasonOther         = "other"
)

// Config controls a Decoder.
type Config struct {
	LinkType     uint32
	MinChannelID uint16  // zero means DynamicChannelBase
	Subchannels  []uint8 // empty means every DLCI
	Layout       Layout  // zero means LayoutSplit
}

// Decoder walks one capture record through every protocol layer. It holds
// no per-record state and may be reused across records of one capture.
type Decoder struct {
	mode   LinkMode
	framer Subchannels
	dlcis  []uint8
	layout Layout
}

// New creates a Decoder.
func New(cfg Config) *Decoder {
	if cfg.MinChannelID == 0 {
		cfg.MinChannelID = DynamicChannelBase
	}
	if cfg.Layout.Name == "" {
		cfg.Layout = LayoutSplit
	}
	return &Decoder{
		mode:   ModeForLinkType(cfg.LinkType),
		framer: Subchannels{MinChannelID: cfg.MinChannelID},
		dlcis:  slices.Clone(cfg.Subchannels),
		layout: cfg.Layout,
	}
}

// Mode returns the link mode chosen for the capture.
func (d *Decoder) Mode() LinkMode { return d.mode }

// Layout returns the vendor header layout in use.
func (d *Decoder) Layout() Layout { return d.layout }

// Result is everything decoded from one record. Fields past Stage are unset.
type Result struct {
	Record     core.CaptureRecord
	Link       core.LinkFrame
	Event      *Event
	Packet     *core.PacketFrame
	Subchannel *core.SubchannelFrame
	Vendor     *core.VendorMessage
	Hints      []string // set for information payloads that are not vendor messages
	Filtered   bool     // subchannel excluded by configuration
	Stage      string
	Err        error
}

// Dropped reports whether the record failed to decode at Stage.
// Short vendor messages are kept and do not count as dropped.
func (r Result) Dropped() bool {
	return r.Err != nil && !errors.Is(r.Err, core.ErrShortMessage)
}

// Reason classifies Err for statistics.
func (r Result) Reason() string {
	switch {
	case r.Err == nil:
		return ""
	case errors.Is(r.Err, core.ErrTruncated):
		return ReasonTruncated
	case errors.Is(r.Err, core.ErrNotRecognized):
		return ReasonNotRecognized
	default:
		return ReasonOther
	}
}

// Decode decodes one record.
func (d *Decoder) Decode(rec core.CaptureRecord) Result {
	res := Result{Record: rec, Stage: StageLink}

	link, err := ClassifyRecord(rec, d.mode)
	res.Link = link
	if err != nil {
		res.Err = err
		return res
	}

	switch link.Kind {
	case core.KindEvent:
		res.Stage = StageEvent
		ev, err := DecodeEvent(link)
		if err != nil {
			res.Err = err
			return res
		}
		res.Event = &ev
		return res
	case core.KindData:
	default:
		return res
	}

	res.Stage = StagePacket
	pkt, err := DecodePacket(link)
	if err != nil {
		res.Err = err
		return res
	}
	res.Packet = &pkt

	res.Stage = StageSubchannel
	sf, err := d.framer.Decode(pkt)
	if err != nil {
		res.Err = err
		return res
	}
	res.Subchannel = &sf
	if len(d.dlcis) > 0 && !slices.Contains(d.dlcis, sf.SubchannelID) {
		res.Filtered = true
		return res
	}
	if sf.Payload == nil {
		return res
	}

	res.Stage = StageVendor
	msg, err := ParseVendor(sf.Payload, rec.Direction, d.layout)
	if errors.Is(err, core.ErrNotRecognized) {
		res.Hints = OBDHints(sf.Payload)
		return res
	}
	msg.Sequence = rec.Sequence
	msg.Timestamp = rec.Timestamp
	msg.SubchannelID = sf.SubchannelID
	res.Vendor = msg
	res.Err = err
	return res
}

// Stats counts decoding outcomes. The zero value is ready to use.
type Stats struct {
	Records        int            `json:"records" yaml:"records" cbor:"records"`
	Kinds          map[string]int `json:"kinds" yaml:"kinds" cbor:"kinds"`
	Events         int            `json:"events" yaml:"events" cbor:"events"`
	Frames         map[string]int `json:"frames" yaml:"frames" cbor:"frames"`
	Filtered       int            `json:"filtered" yaml:"filtered" cbor:"filtered"`
	Drops          map[string]int `json:"drops" yaml:"drops" cbor:"drops"` // "stage.reason"
	VendorMessages int            `json:"vendor_messages" yaml:"vendor_messages" cbor:"vendor_messages"`
	ShortMessages  int            `json:"short_messages" yaml:"short_messages" cbor:"short_messages"`
	Fragmented     int            `json:"fragmented" yaml:"fragmented" cbor:"fragmented"`
	NonVendor      int            `json:"non_vendor" yaml:"non_vendor" cbor:"non_vendor"`
	TruncatedTail  bool           `json:"truncated_tail" yaml:"truncated_tail" cbor:"truncated_tail"`
}

func inc(m *map[string]int, key string, n int) {
	if *m == nil {
		*m = make(map[string]int)
	}
	(*m)[key] += n
}

// Observe accounts for one decoded record.
func (s *Stats) Observe(r Result) {
	s.Records++
	if r.Link.Kind != 0 {
		inc(&s.Kinds, r.Link.Kind.String(), 1)
	}
	if r.Event != nil {
		s.Events++
	}
	if r.Subchannel != nil {
		inc(&s.Frames, r.Subchannel.Type.String(), 1)
	}
	if r.Filtered {
		s.Filtered++
	}
	if r.Dropped() {
		inc(&s.Drops, r.Stage+"."+r.Reason(), 1)
	}
	if r.Stage == StageVendor && r.Vendor == nil {
		s.NonVendor++
	}
	if r.Vendor != nil {
		if r.Vendor.Short {
			s.ShortMessages++
		} else {
			s.VendorMessages++
		}
		if r.Vendor.Fragmented {
			s.Fragmented++
		}
	}
}

// Merge adds o's counts to s.
func (s *Stats) Merge(o Stats) {
	s.Records += o.Records
	s.Events += o.Events
	s.Filtered += o.Filtered
	s.VendorMessages += o.VendorMessages
	s.ShortMessages += o.ShortMessages
	s.Fragmented += o.Fragmented
	s.NonVendor += o.NonVendor
	s.TruncatedTail = s.TruncatedTail || o.TruncatedTail
	for k, v := range o.Kinds {
		inc(&s.Kinds, k, v)
	}
	for k, v := range o.Frames {
		inc(&s.Frames, k, v)
	}
	for k, v := range o.Drops {
		inc(&s.Drops, k, v)
	}
}

// TotalDrops sums every drop category.
func (s Stats) TotalDrops() int {
	n := 0
	for _, v := range s.Drops {
		n += v
	}
	return n
}
