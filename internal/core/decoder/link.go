// Package decoder implements the Bluetooth HCI to vendor message decoding stack.
package decoder

import (
	"fmt"

	"firestige.xyz/spptrace/internal/core"
)

// LinkMode selects how a record's HCI packet class is determined.
type LinkMode uint8

const (
	// ModeFlags derives the class from the record flags (datalink 1001).
	ModeFlags LinkMode = iota
	// ModeDiscriminator reads the class from the first body byte (H4 and friends).
	ModeDiscriminator
)

const linkTypeHCI = 1001

// H4 packet type indicators.
const (
	h4Command = 0x01
	h4ACL     = 0x02
	h4SCO     = 0x03
	h4Event   = 0x04
)

func (m LinkMode) String() string {
	if m == ModeFlags {
		return "flags"
	}
	return "discriminator"
}

// ModeForLinkType picks the link mode for a capture's datalink type.
func ModeForLinkType(linkType uint32) LinkMode {
	if linkType == linkTypeHCI {
		return ModeFlags
	}
	return ModeDiscriminator
}

// ClassifyRecord assigns an HCI packet class to a capture record.
func ClassifyRecord(rec core.CaptureRecord, mode LinkMode) (core.LinkFrame, error) {
	frame := core.LinkFrame{Record: rec}

	if mode == ModeFlags {
		switch {
		case rec.IsControl && rec.Direction == core.Received:
			frame.Kind = core.KindEvent
		case rec.IsControl:
			frame.Kind = core.KindCommand
		default:
			frame.Kind = core.KindData
		}
		frame.Body = rec.Data
		return frame, nil
	}

	if len(rec.Data) == 0 {
		return frame, fmt.Errorf("%w: empty record body", core.ErrTruncated)
	}
	switch rec.Data[0] {
	case h4Command:
		frame.Kind = core.KindCommand
	case h4ACL:
		frame.Kind = core.KindData
	case h4SCO:
		frame.Kind = core.KindVoice
	case h4Event:
		frame.Kind = core.KindEvent
	default:
		return frame, fmt.Errorf("%w: packet type 0x%02X", core.ErrNotRecognized, rec.Data[0])
	}
	frame.Body = rec.Data[1:]
	return frame, nil
}
