package decoder

import (
	"fmt"
	"sort"

	"firestige.xyz/spptrace/internal/core"
)

// Layout describes where the vendor header fields sit. All offsets are
// relative to the start of the magic.
type Layout struct {
	Name string `mapstructure:"name"`

	// PastMagic reports HeaderOffset as the first byte after the magic
	// instead of the magic itself.
	PastMagic bool `mapstructure:"past_magic"`
	MinLength int  `mapstructure:"min_length"`

	TotalLength     int `mapstructure:"total_length"`
	SessionID       int `mapstructure:"session_id"`
	MessageCounter  int `mapstructure:"message_counter"`
	PayloadLength   int `mapstructure:"payload_length"`
	SessionIDRepeat int `mapstructure:"session_id_repeat"`
	Flags           int `mapstructure:"flags"`
	StatusCode      int `mapstructure:"status_code"`
	Reserved        int `mapstructure:"reserved"`
	PayloadStart    int `mapstructure:"payload_start"`

	// Bounded layouts end the payload at magic+total_length and may carry a
	// four byte check value after it. Unbounded payloads run to the end of
	// the record.
	Bounded bool `mapstructure:"bounded"`
}

// Built-in layouts.
var (
	LayoutSplit = Layout{
		Name:            "split",
		MinLength:       40,
		TotalLength:     4,
		SessionID:       8,
		MessageCounter:  12,
		PayloadLength:   16,
		SessionIDRepeat: 20,
		Flags:           24,
		StatusCode:      28,
		Reserved:        32,
		PayloadStart:    36,
		Bounded:         true,
	}

	LayoutMessageID = Layout{
		Name:            "message-id",
		PastMagic:       true,
		MinLength:       40,
		TotalLength:     4,
		SessionID:       8,
		MessageCounter:  12,
		PayloadLength:   16,
		SessionIDRepeat: 20,
		Flags:           28,
		StatusCode:      32,
		Reserved:        36,
		PayloadStart:    40,
	}
)

var builtinLayouts = map[string]Layout{
	LayoutSplit.Name:     LayoutSplit,
	LayoutMessageID.Name: LayoutMessageID,
}

// LookupLayout returns the built-in layout with the given name.
func LookupLayout(name string) (Layout, bool) {
	l, ok := builtinLayouts[name]
	return l, ok
}

// LayoutNames lists the built-in layout names in sorted order.
func LayoutNames() []string {
	names := make([]string, 0, len(builtinLayouts))
	for name := range builtinLayouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every field fits inside the minimum header.
func (l Layout) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("%w: layout name is required", core.ErrConfigInvalid)
	}
	if l.MinLength < len(vendorMagic) {
		return fmt.Errorf("%w: layout %s: min_length %d shorter than the magic", core.ErrConfigInvalid, l.Name, l.MinLength)
	}

	fields := map[string]int{
		"total_length":      l.TotalLength,
		"session_id":        l.SessionID,
		"message_counter":   l.MessageCounter,
		"payload_length":    l.PayloadLength,
		"session_id_repeat": l.SessionIDRepeat,
		"flags":             l.Flags,
		"status_code":       l.StatusCode,
		"reserved":          l.Reserved,
	}
	for name, off := range fields {
		if off < len(vendorMagic) || off+4 > l.MinLength {
			return fmt.Errorf("%w: layout %s: %s offset %d outside header [4,%d)", core.ErrConfigInvalid, l.Name, name, off, l.MinLength)
		}
	}
	if l.PayloadStart < len(vendorMagic) || l.PayloadStart > l.MinLength {
		return fmt.Errorf("%w: layout %s: payload_start %d outside header", core.ErrConfigInvalid, l.Name, l.PayloadStart)
	}
	return nil
}
