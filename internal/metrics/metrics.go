// Package metrics exposes decode counters as Prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"firestige.xyz/spptrace/internal/core"
	"firestige.xyz/spptrace/internal/core/decoder"
)

// Collector owns a private registry so that concurrent runs and tests never
// share counters. Safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	// RecordsTotal counts capture records by HCI packet class
	RecordsTotal *prometheus.CounterVec
	// DropsTotal counts records that failed to decode
	DropsTotal *prometheus.CounterVec
	// FilteredTotal counts records rejected by filters
	FilteredTotal *prometheus.CounterVec
	// FramesTotal counts RFCOMM frames by type
	FramesTotal *prometheus.CounterVec
	// VendorMessagesTotal counts parsed vendor messages
	VendorMessagesTotal *prometheus.CounterVec
	// ShortMessagesTotal counts vendor messages with an incomplete header
	ShortMessagesTotal *prometheus.CounterVec
	// FragmentedMessagesTotal counts vendor messages cut by the record boundary
	FragmentedMessagesTotal *prometheus.CounterVec
	// MessagesByTypeTotal counts classified messages by type tag
	MessagesByTypeTotal *prometheus.CounterVec
	// PayloadBytes measures vendor payload sizes
	PayloadBytes *prometheus.HistogramVec
}

// NewCollector registers every metric on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		RecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spptrace_records_total",
				Help: "Total number of capture records read",
			},
			[]string{"capture", "kind"},
		),
		DropsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spptrace_drops_total",
				Help: "Total number of records dropped while decoding",
			},
			[]string{"capture", "stage", "reason"},
		),
		FilteredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spptrace_filtered_total",
				Help: "Total number of records rejected by filters",
			},
			[]string{"capture"},
		),
		FramesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spptrace_rfcomm_frames_total",
				Help: "Total number of RFCOMM frames by frame type",
			},
			[]string{"capture", "type"},
		),
		VendorMessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spptrace_vendor_messages_total",
				Help: "Total number of vendor messages parsed",
			},
			[]string{"capture", "direction"},
		),
		ShortMessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spptrace_short_messages_total",
				Help: "Total number of vendor messages shorter than the header",
			},
			[]string{"capture"},
		),
		FragmentedMessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spptrace_fragmented_messages_total",
				Help: "Total number of vendor messages extending past their record",
			},
			[]string{"capture"},
		),
		MessagesByTypeTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spptrace_messages_by_type_total",
				Help: "Total number of classified messages by type tag",
			},
			[]string{"capture", "type_tag"},
		),
		PayloadBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spptrace_vendor_payload_bytes",
				Help:    "Size of vendor message payloads in bytes",
				Buckets: prometheus.ExponentialBuckets(4, 2, 10), // 4 .. 2048
			},
			[]string{"capture", "direction"},
		),
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// ObserveRecord accounts for one decoded record of capture.
func (c *Collector) ObserveRecord(capture string, r decoder.Result, accepted bool) {
	kind := "UNKNOWN"
	if r.Link.Kind != 0 {
		kind = r.Link.Kind.String()
	}
	c.RecordsTotal.WithLabelValues(capture, kind).Inc()

	if !accepted {
		c.FilteredTotal.WithLabelValues(capture).Inc()
		return
	}
	if r.Dropped() {
		c.DropsTotal.WithLabelValues(capture, r.Stage, r.Reason()).Inc()
	}
	if r.Filtered {
		c.FilteredTotal.WithLabelValues(capture).Inc()
	}
	if r.Subchannel != nil {
		c.FramesTotal.WithLabelValues(capture, r.Subchannel.Type.String()).Inc()
	}
	if m := r.Vendor; m != nil {
		switch {
		case m.Short:
			c.ShortMessagesTotal.WithLabelValues(capture).Inc()
		default:
			c.VendorMessagesTotal.WithLabelValues(capture, m.Direction.String()).Inc()
			c.PayloadBytes.WithLabelValues(capture, m.Direction.String()).Observe(float64(len(m.Payload)))
		}
		if m.Fragmented {
			c.FragmentedMessagesTotal.WithLabelValues(capture).Inc()
		}
	}
}

// ObserveMessage accounts for one classified message.
func (c *Collector) ObserveMessage(capture string, m *core.ClassifiedMessage) {
	c.MessagesByTypeTotal.WithLabelValues(capture, m.TypeTag).Inc()
}

// WriteTextfile writes every metric in the text exposition format, for the
// node exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
