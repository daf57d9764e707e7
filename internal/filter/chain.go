package filter

import "firestige.xyz/spptrace/internal/core"

// FilterChain is one link of a filter chain. A filter accepts a frame by
// calling Filter on the chain it was given; the last link hands the frame
// to the handler.
type FilterChain struct {
	filters []Filter
	current Filter
	next    *FilterChain
	handler func(frame *core.LinkFrame)
}

// NewFilterChain links filters in order in front of handler.
func NewFilterChain(handler func(frame *core.LinkFrame), filters []Filter) *FilterChain {
	all := make([]Filter, len(filters))
	copy(all, filters)

	chain := &FilterChain{filters: all, handler: handler}
	for i := len(all) - 1; i >= 0; i-- {
		chain = &FilterChain{filters: all, current: all[i], next: chain, handler: handler}
	}
	return chain
}

// Filters returns the filters in evaluation order.
func (c *FilterChain) Filters() []Filter {
	return c.filters
}

func (c *FilterChain) Filter(frame *core.LinkFrame) {
	if c.current != nil {
		c.current.Filter(frame, c.next)
		return
	}
	c.handler(frame)
}

// Selector answers accept/reject for a fixed filter list. The chain is built
// once; a Selector is not safe for concurrent use.
type Selector struct {
	chain *FilterChain
	hit   bool
}

// NewSelector builds a selector. With no filters every frame is accepted.
func NewSelector(filters []Filter) *Selector {
	s := &Selector{}
	if len(filters) > 0 {
		s.chain = NewFilterChain(func(*core.LinkFrame) { s.hit = true }, filters)
	}
	return s
}

// Accept runs frame through the chain and reports whether it reached the end.
func (s *Selector) Accept(frame *core.LinkFrame) bool {
	if s.chain == nil {
		return true
	}
	s.hit = false
	s.chain.Filter(frame)
	return s.hit
}
