package pipeline

import "sync/atomic"

// Progress counts work across concurrent runs.
type Progress struct {
	Files    atomic.Uint64
	Records  atomic.Uint64
	Messages atomic.Uint64
}
