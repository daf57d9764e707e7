// Package correlator groups vendor messages into sessions and assigns each
// message a type tag.
package correlator

import (
	"bytes"
	"fmt"
	"strings"

	"firestige.xyz/spptrace/internal/core"
)

// Predicate inspects a vendor message.
type Predicate func(*core.VendorMessage) bool

// Rule tags messages that match.
type Rule struct {
	Name  string
	Match Predicate
	Tag   string
}

// Classifier evaluates rules in order; the first match wins. Messages no rule
// matches get a tag synthesized from the status code and reserved field.
type Classifier struct {
	rules []Rule
}

// NewClassifier returns a classifier with the given rules and no built-ins.
func NewClassifier(rules ...Rule) *Classifier {
	return &Classifier{rules: append([]Rule(nil), rules...)}
}

// DefaultClassifier returns a classifier loaded with the built-in rules.
func DefaultClassifier() *Classifier {
	return NewClassifier(BuiltinRules()...)
}

// Prepend adds rules ahead of the existing ones.
func (c *Classifier) Prepend(rules ...Rule) {
	c.rules = append(append([]Rule(nil), rules...), c.rules...)
}

// Append adds rules after the existing ones.
func (c *Classifier) Append(rules ...Rule) {
	c.rules = append(c.rules, rules...)
}

// Rules returns a copy of the rule chain.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// Classify returns the tag of the first matching rule.
func (c *Classifier) Classify(msg *core.VendorMessage) string {
	for _, r := range c.rules {
		if r.Match(msg) {
			return r.Tag
		}
	}
	return FallbackTag(msg)
}

// FallbackTag is the tag given to messages no rule recognizes.
func FallbackTag(msg *core.VendorMessage) string {
	return fmt.Sprintf("CMD_%02X_%02X", msg.StatusCode, msg.Reserved)
}

// ASCIIContains matches when the ASCII excerpt contains s.
func ASCIIContains(s string) Predicate {
	return func(m *core.VendorMessage) bool {
		return m.ASCIIExcerpt != "" && strings.Contains(m.ASCIIExcerpt, s)
	}
}

// PayloadPrefix matches payloads starting with p.
func PayloadPrefix(p []byte) Predicate {
	return func(m *core.VendorMessage) bool {
		return len(m.Payload) > 0 && bytes.HasPrefix(m.Payload, p)
	}
}

// DirectionIs matches messages travelling in d.
func DirectionIs(d core.Direction) Predicate {
	return func(m *core.VendorMessage) bool { return m.Direction == d }
}

// StatusIs matches the status code.
func StatusIs(code uint32) Predicate {
	return func(m *core.VendorMessage) bool { return m.StatusCode == code }
}

// ReservedIs matches the reserved field.
func ReservedIs(v uint32) Predicate {
	return func(m *core.VendorMessage) bool { return m.Reserved == v }
}

// All matches when every predicate matches.
func All(ps ...Predicate) Predicate {
	return func(m *core.VendorMessage) bool {
		for _, p := range ps {
			if !p(m) {
				return false
			}
		}
		return true
	}
}

// Any matches when at least one predicate matches.
func Any(ps ...Predicate) Predicate {
	return func(m *core.VendorMessage) bool {
		for _, p := range ps {
			if p(m) {
				return true
			}
		}
		return false
	}
}

var passThruOpenPrefix = []byte{0x5E, 0x01, 0x00, 0x00}

// sentCommands maps (status_code, reserved) of outbound messages.
var sentCommands = []struct {
	status, reserved uint32
	tag              string
}{
	{0x00, 0x00, core.TagConnectRequest},
	{0x01, 0x04, core.TagPassThruOpen},
	{0x01, 0x03, core.TagPassThruClose},
}

// sentStatuses maps status_code alone of outbound messages.
var sentStatuses = []struct {
	status uint32
	tag    string
}{
	{0x0B, core.TagGetVersion},
	{0x02, core.TagReadData},
	{0x05, core.TagWriteData},
	{0x08, core.TagStartMsgFilter},
	{0x03, core.TagDisconnect},
}

// BuiltinRules returns the default chain: payload text first, then payload
// bytes, then header fields by direction.
func BuiltinRules() []Rule {
	sent := DirectionIs(core.Sent)
	recv := DirectionIs(core.Received)

	rules := []Rule{
		{Name: "ascii-j2534-rx", Match: All(ASCIIContains("J2534"), recv), Tag: core.TagDeviceIDResponse},
		{Name: "ascii-j2534-tx", Match: ASCIIContains("J2534"), Tag: core.TagDeviceIDRequest},
		{Name: "ascii-autel", Match: ASCIIContains("AUTEL"), Tag: core.TagVendorIDResponse},
		{Name: "ascii-firmware", Match: Any(ASCIIContains("Mar "), ASCIIContains("V2.")), Tag: core.TagFirmwareVersionResponse},
		{Name: "ascii-maxi", Match: ASCIIContains("MAXI"), Tag: core.TagDeviceName},
		{Name: "payload-passthru-open", Match: PayloadPrefix(passThruOpenPrefix), Tag: core.TagPassThruOpenResponse},
	}
	for _, c := range sentCommands {
		rules = append(rules, Rule{
			Name:  strings.ToLower(strings.ReplaceAll(c.tag, "_", "-")),
			Match: All(sent, StatusIs(c.status), ReservedIs(c.reserved)),
			Tag:   c.tag,
		})
	}
	for _, c := range sentStatuses {
		rules = append(rules, Rule{
			Name:  strings.ToLower(strings.ReplaceAll(c.tag, "_", "-")),
			Match: All(sent, StatusIs(c.status)),
			Tag:   c.tag,
		})
	}
	rules = append(rules, Rule{Name: "success-response", Match: All(recv, StatusIs(0)), Tag: core.TagSuccessResponse})
	return rules
}
