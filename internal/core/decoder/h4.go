package decoder

import (
	"encoding/binary"

	"firestige.xyz/spptrace/internal/core"
)

// PHDRLen is the size of the direction pseudo-header of
// LINKTYPE_BLUETOOTH_HCI_H4_WITH_PHDR.
const PHDRLen = 4

var kindIndicator = map[core.LinkKind]byte{
	core.KindCommand: h4Command,
	core.KindData:    h4ACL,
	core.KindVoice:   h4SCO,
	core.KindEvent:   h4Event,
}

// EncodeH4 renders a classified frame as H4 with a direction pseudo-header:
// a big-endian u32 (0 sent, 1 received), the packet indicator and the body.
// Unclassified frames yield false.
func EncodeH4(frame core.LinkFrame) ([]byte, bool) {
	ind, ok := kindIndicator[frame.Kind]
	if !ok {
		return nil, false
	}
	out := make([]byte, PHDRLen+1+len(frame.Body))
	binary.BigEndian.PutUint32(out[0:PHDRLen], uint32(frame.Record.Direction))
	out[PHDRLen] = ind
	copy(out[PHDRLen+1:], frame.Body)
	return out, true
}
