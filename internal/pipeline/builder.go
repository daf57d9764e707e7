package pipeline

import (
	"firestige.xyz/spptrace/internal/core/decoder"
	"firestige.xyz/spptrace/internal/correlator"
	"firestige.xyz/spptrace/internal/filter"
	"firestige.xyz/spptrace/internal/log"
	"firestige.xyz/spptrace/internal/metrics"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using Config directly.
type Builder struct {
	config Config
}

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithName sets the capture label used in logs and metrics.
func (b *Builder) WithName(name string) *Builder {
	b.config.Name = name
	return b
}

// WithDecoder sets the decoder settings.
func (b *Builder) WithDecoder(cfg decoder.Config) *Builder {
	b.config.Decoder = cfg
	return b
}

// WithFilters sets the record filters.
func (b *Builder) WithFilters(filters ...filter.Filter) *Builder {
	b.config.Filters = filters
	return b
}

// WithClassifier sets the message classifier.
func (b *Builder) WithClassifier(c *correlator.Classifier) *Builder {
	b.config.Classifier = c
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(l log.Logger) *Builder {
	b.config.Logger = l
	return b
}

// WithMetrics sets the metrics collector.
func (b *Builder) WithMetrics(c *metrics.Collector) *Builder {
	b.config.Metrics = c
	return b
}

// WithProgress sets shared progress counters.
func (b *Builder) WithProgress(p *Progress) *Builder {
	b.config.Progress = p
	return b
}

// KeepRecords retains accepted records in the result.
func (b *Builder) KeepRecords() *Builder {
	b.config.KeepRecords = true
	return b
}

// Config returns the accumulated configuration.
func (b *Builder) Config() Config {
	return b.config
}

// Build creates the pipeline.
func (b *Builder) Build() *Pipeline {
	return New(b.config)
}
