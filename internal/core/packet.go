// Package core defines core data structures with zero external dependencies.
package core

import "time"

// Direction is the traffic direction of a captured record, seen from the host.
type Direction uint8

const (
	Sent     Direction = 0 // flags bit 0 clear
	Received Direction = 1 // flags bit 0 set
)

func (d Direction) String() string {
	if d == Received {
		return "RX"
	}
	return "TX"
}

// btsnoopEpochDelta is the number of microseconds between 0000-01-01 and
// 1970-01-01 as used by btsnoop timestamps.
const btsnoopEpochDelta = 0x00dcddb30f2f8000

// CaptureRecord is one record of the capture container. Immutable once read.
type CaptureRecord struct {
	Sequence        uint64 // 1-based position in the capture
	Timestamp       uint64 // microseconds since 0000-01-01 (capture-native)
	Direction       Direction
	IsControl       bool   // flags bit 1: command/event rather than data
	Flags           uint32 // raw record flags
	OriginalLength  uint32
	CumulativeDrops uint32
	Data            []byte // record body, len == included length
}

// Time converts the capture-native timestamp to wall clock time.
// Timestamps older than the Unix epoch yield the zero time.
func (r CaptureRecord) Time() time.Time {
	if r.Timestamp < btsnoopEpochDelta {
		return time.Time{}
	}
	us := int64(r.Timestamp - btsnoopEpochDelta)
	return time.UnixMicro(us).UTC()
}

// TimestampFromTime is the inverse of CaptureRecord.Time.
func TimestampFromTime(t time.Time) uint64 {
	return uint64(t.UnixMicro()) + btsnoopEpochDelta
}
