package core

// Session accumulates the messages that share a session id. It has no
// open/close lifecycle.
type Session struct {
	ID       uint32
	Messages []*ClassifiedMessage
	Sent     []*ClassifiedMessage
	Received []*ClassifiedMessage
}

// Add appends m in arrival order.
func (s *Session) Add(m *ClassifiedMessage) {
	s.Messages = append(s.Messages, m)
	if m.Message.Direction == Received {
		s.Received = append(s.Received, m)
	} else {
		s.Sent = append(s.Sent, m)
	}
}

// CounterMonotonic reports whether message counters never decrease in
// arrival order.
func (s *Session) CounterMonotonic() bool {
	for i := 1; i < len(s.Messages); i++ {
		if s.Messages[i].Message.MessageCounter < s.Messages[i-1].Message.MessageCounter {
			return false
		}
	}
	return true
}

// Exchanges pairs each sent message with the next received message in
// arrival order. Alternation is not guaranteed by the protocol, so the
// pairing is advisory: a request followed by another request is left
// without a response, and a response with no pending request is left
// without a request.
func (s *Session) Exchanges() []Exchange {
	var out []Exchange
	var pending *ClassifiedMessage
	for _, m := range s.Messages {
		if m.Message.Direction == Sent {
			if pending != nil {
				out = append(out, Exchange{Request: pending})
			}
			pending = m
			continue
		}
		out = append(out, Exchange{Request: pending, Response: m})
		pending = nil
	}
	if pending != nil {
		out = append(out, Exchange{Request: pending})
	}
	return out
}
