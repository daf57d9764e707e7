// Package filter selects which capture records reach the decoder output.
package filter

import (
	"fmt"
	"strings"

	"firestige.xyz/spptrace/internal/core"
)

// Filter inspects a frame and passes it down the chain to accept it.
type Filter interface {
	Filter(frame *core.LinkFrame, chain *FilterChain)
}

// DirectionFilter keeps frames travelling in one of the allowed directions.
type DirectionFilter struct {
	allow [2]bool
}

// NewDirectionFilter parses names such as "tx", "rx", "sent", "received".
func NewDirectionFilter(names []string) (*DirectionFilter, error) {
	f := &DirectionFilter{}
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "tx", "sent":
			f.allow[core.Sent] = true
		case "rx", "received":
			f.allow[core.Received] = true
		default:
			return nil, fmt.Errorf("%w: unknown direction %q", core.ErrConfigInvalid, n)
		}
	}
	return f, nil
}

func (f *DirectionFilter) Filter(frame *core.LinkFrame, chain *FilterChain) {
	if f.allow[frame.Record.Direction] {
		chain.Filter(frame)
	}
}
