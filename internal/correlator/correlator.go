package correlator

import "firestige.xyz/spptrace/internal/core"

// Correlator owns the session table of one decode run. It is not safe for
// concurrent use; give each run its own instance.
type Correlator struct {
	classifier *Classifier
	messages   []*core.ClassifiedMessage
	sessions   map[uint32]*core.Session
	order      []uint32
}

// New creates a Correlator. A nil classifier means DefaultClassifier.
func New(c *Classifier) *Correlator {
	if c == nil {
		c = DefaultClassifier()
	}
	return &Correlator{
		classifier: c,
		sessions:   make(map[uint32]*core.Session),
	}
}

// Add classifies msg and files it under its session. Short messages have no
// header fields and are not correlated; Add returns nil for them.
func (c *Correlator) Add(msg *core.VendorMessage) *core.ClassifiedMessage {
	if msg == nil || msg.Short {
		return nil
	}

	cm := &core.ClassifiedMessage{Message: msg, TypeTag: c.classifier.Classify(msg)}
	c.messages = append(c.messages, cm)

	s, ok := c.sessions[msg.SessionID]
	if !ok {
		s = &core.Session{ID: msg.SessionID}
		c.sessions[msg.SessionID] = s
		c.order = append(c.order, msg.SessionID)
	}
	s.Add(cm)
	return cm
}

// Messages returns every classified message in arrival order.
func (c *Correlator) Messages() []*core.ClassifiedMessage {
	return c.messages
}

// Sessions returns sessions in first-seen order.
func (c *Correlator) Sessions() []*core.Session {
	out := make([]*core.Session, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.sessions[id])
	}
	return out
}

// Session looks up a session by id.
func (c *Correlator) Session(id uint32) (*core.Session, bool) {
	s, ok := c.sessions[id]
	return s, ok
}

// TypeCounts counts messages per type tag.
func (c *Correlator) TypeCounts() map[string]int {
	counts := make(map[string]int)
	for _, m := range c.messages {
		counts[m.TypeTag]++
	}
	return counts
}
