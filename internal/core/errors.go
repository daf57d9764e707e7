// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Layers wrap them with fmt.Errorf("%w: ...") and callers
// match with errors.Is.
var (
	// Capture container errors
	ErrFormat = errors.New("spptrace: not a btsnoop capture")

	// Per-record decoding outcomes. None of these abort a run.
	ErrTruncated     = errors.New("spptrace: declared length exceeds available bytes")
	ErrNotRecognized = errors.New("spptrace: record not recognized")
	ErrShortMessage  = errors.New("spptrace: vendor message shorter than header")

	// Configuration errors
	ErrConfigInvalid = errors.New("spptrace: invalid configuration")

	// Export errors
	ErrUnsupportedFormat = errors.New("spptrace: unsupported export format")
)
