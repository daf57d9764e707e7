package correlator

import (
	"fmt"
	"strings"

	"firestige.xyz/spptrace/internal/core"
)

// RuleSpec is a declarative rule loaded from configuration. Every set
// condition must hold for the rule to match.
type RuleSpec struct {
	Name          string  `mapstructure:"name"`
	Tag           string  `mapstructure:"tag"`
	ASCIIContains string  `mapstructure:"ascii_contains"`
	PayloadPrefix []byte  `mapstructure:"payload_prefix"`
	Status        *uint32 `mapstructure:"status"`
	Reserved      *uint32 `mapstructure:"reserved"`
	Direction     string  `mapstructure:"direction"` // "tx", "rx" or empty
}

// Compile turns the declaration into a Rule.
func (s RuleSpec) Compile() (Rule, error) {
	if s.Tag == "" {
		return Rule{}, fmt.Errorf("%w: rule %q has no tag", core.ErrConfigInvalid, s.Name)
	}

	var ps []Predicate
	switch strings.ToLower(s.Direction) {
	case "":
	case "tx", "sent":
		ps = append(ps, DirectionIs(core.Sent))
	case "rx", "received":
		ps = append(ps, DirectionIs(core.Received))
	default:
		return Rule{}, fmt.Errorf("%w: rule %q: unknown direction %q", core.ErrConfigInvalid, s.Name, s.Direction)
	}
	if s.ASCIIContains != "" {
		ps = append(ps, ASCIIContains(s.ASCIIContains))
	}
	if len(s.PayloadPrefix) > 0 {
		ps = append(ps, PayloadPrefix(s.PayloadPrefix))
	}
	if s.Status != nil {
		ps = append(ps, StatusIs(*s.Status))
	}
	if s.Reserved != nil {
		ps = append(ps, ReservedIs(*s.Reserved))
	}
	if len(ps) == 0 {
		return Rule{}, fmt.Errorf("%w: rule %q has no conditions", core.ErrConfigInvalid, s.Name)
	}

	name := s.Name
	if name == "" {
		name = strings.ToLower(s.Tag)
	}
	return Rule{Name: name, Match: All(ps...), Tag: s.Tag}, nil
}

// CompileRules compiles specs in order.
func CompileRules(specs []RuleSpec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for _, s := range specs {
		r, err := s.Compile()
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}
