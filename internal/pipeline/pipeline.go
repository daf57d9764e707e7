// Package pipeline runs captures through the decoder and the session correlator.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"firestige.xyz/spptrace/internal/core"
	"firestige.xyz/spptrace/internal/core/btsnoop"
	"firestige.xyz/spptrace/internal/core/decoder"
	"firestige.xyz/spptrace/internal/correlator"
	"firestige.xyz/spptrace/internal/filter"
	"firestige.xyz/spptrace/internal/log"
	"firestige.xyz/spptrace/internal/metrics"
	"firestige.xyz/spptrace/internal/source"
)

// Pipeline decodes one capture at a time. It holds configuration only, so a
// single Pipeline may run several captures concurrently.
type Pipeline struct {
	name        string
	decoder     decoder.Config
	filters     []filter.Filter
	classifier  *correlator.Classifier
	logger      log.Logger
	collector   *metrics.Collector
	progress    *Progress
	keepRecords bool
}

// Config contains pipeline configuration.
type Config struct {
	Name string // label for logs and metrics, usually the capture path

	// Decoder settings. A zero LinkType means the datalink type from the
	// capture header.
	Decoder    decoder.Config
	Filters    []filter.Filter
	Classifier *correlator.Classifier // nil means the built-in rules
	Logger     log.Logger             // nil means log.GetLogger()
	Metrics    *metrics.Collector     // optional
	Progress   *Progress              // optional, shared across runs

	// KeepRecords retains accepted records in Result.Records for export.
	KeepRecords bool
}

// New creates a new pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = log.GetLogger()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = correlator.DefaultClassifier()
	}
	return &Pipeline{
		name:        cfg.Name,
		decoder:     cfg.Decoder,
		filters:     cfg.Filters,
		classifier:  cfg.Classifier,
		logger:      cfg.Logger,
		collector:   cfg.Metrics,
		progress:    cfg.Progress,
		keepRecords: cfg.KeepRecords,
	}
}

// Traffic counts records per direction.
type Traffic struct {
	Sent     int `json:"sent" yaml:"sent" cbor:"sent"`
	Received int `json:"received" yaml:"received" cbor:"received"`
}

func (t *Traffic) add(dir core.Direction) {
	if dir == core.Received {
		t.Received++
	} else {
		t.Sent++
	}
}

// Result is everything one run produced.
type Result struct {
	Name   string
	Header btsnoop.Header
	Mode   decoder.LinkMode
	Layout string

	Stats    decoder.Stats
	Messages []*core.ClassifiedMessage
	Sessions []*core.Session
	Short    []*core.VendorMessage // magic found, header incomplete

	Channels    map[uint16]*Traffic // L2CAP channel id
	Subchannels map[uint8]*Traffic  // RFCOMM DLCI
	Hints       map[string]int      // OBD hints seen in non-vendor payloads
	Devices     []core.Device

	Records []core.CaptureRecord // accepted records; only with KeepRecords
}

// TypeCounts counts messages per type tag.
func (r *Result) TypeCounts() map[string]int {
	counts := make(map[string]int)
	for _, m := range r.Messages {
		counts[m.TypeTag]++
	}
	return counts
}

// Run decodes every record of a btsnoop or pcap stream. Only an unreadable
// capture header or a cancelled context fails the run; per-record problems
// end up in Stats.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (*Result, error) {
	src, err := source.Open(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}
	return p.RunSource(ctx, src)
}

// RunSource decodes every record of reader.
func (p *Pipeline) RunSource(ctx context.Context, reader source.Source) (*Result, error) {
	cfg := p.decoder
	if cfg.LinkType == 0 {
		cfg.LinkType = reader.Header().LinkType
	}
	dec := decoder.New(cfg)

	res := &Result{
		Name:        p.name,
		Header:      reader.Header(),
		Mode:        dec.Mode(),
		Layout:      dec.Layout().Name,
		Channels:    make(map[uint16]*Traffic),
		Subchannels: make(map[uint8]*Traffic),
		Hints:       make(map[string]int),
	}
	if p.keepRecords {
		res.Records = []core.CaptureRecord{}
	}
	st := &run{
		Pipeline: p,
		res:      res,
		corr:     correlator.New(p.classifier),
		devices:  decoder.NewDeviceTable(),
		selector: filter.NewSelector(p.filters),
	}

	p.logger.WithFields(map[string]any{
		"capture":   p.name,
		"link_type": res.Header.LinkType,
		"mode":      res.Mode.String(),
		"layout":    res.Layout,
	}).Debug("decoding capture")

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.name, err)
		}

		st.process(dec.Decode(rec))
	}

	res.Stats.TruncatedTail = reader.Truncated()
	if res.Stats.TruncatedTail {
		p.logger.WithField("capture", p.name).Warn("capture ends with a truncated record")
	}

	res.Messages = st.corr.Messages()
	res.Sessions = st.corr.Sessions()
	res.Devices = st.devices.Devices()

	if p.progress != nil {
		p.progress.Files.Add(1)
	}
	p.logger.WithFields(map[string]any{
		"capture":  p.name,
		"records":  res.Stats.Records,
		"messages": len(res.Messages),
		"sessions": len(res.Sessions),
		"drops":    res.Stats.TotalDrops(),
	}).Info("capture decoded")
	return res, nil
}

// run is the state of one Run call.
type run struct {
	*Pipeline
	res      *Result
	corr     *correlator.Correlator
	devices  *decoder.DeviceTable
	selector *filter.Selector
}

func (p *run) process(r decoder.Result) {
	res := p.res
	if p.progress != nil {
		p.progress.Records.Add(1)
	}

	accepted := p.selector.Accept(&r.Link)
	if p.collector != nil {
		p.collector.ObserveRecord(p.name, r, accepted)
	}
	if !accepted {
		res.Stats.Observe(decoder.Result{Record: r.Record, Link: r.Link, Filtered: true})
		return
	}

	res.Stats.Observe(r)
	if p.keepRecords {
		res.Records = append(res.Records, r.Record)
	}

	if r.Dropped() && p.logger.IsDebugEnabled() {
		p.logger.WithFields(map[string]any{
			"seq":    r.Record.Sequence,
			"stage":  r.Stage,
			"reason": r.Reason(),
		}).WithError(r.Err).Debug("record dropped")
	}

	if r.Event != nil {
		p.devices.Observe(*r.Event)
	}
	if r.Packet != nil {
		trafficFor(res.Channels, r.Packet.ChannelID).add(r.Record.Direction)
	}
	if r.Subchannel != nil {
		trafficFor(res.Subchannels, r.Subchannel.SubchannelID).add(r.Record.Direction)
	}
	for _, h := range r.Hints {
		res.Hints[h]++
	}

	if r.Vendor == nil {
		return
	}
	if r.Vendor.Short {
		res.Short = append(res.Short, r.Vendor)
		return
	}
	if cm := p.corr.Add(r.Vendor); cm != nil {
		if p.collector != nil {
			p.collector.ObserveMessage(p.name, cm)
		}
		if p.progress != nil {
			p.progress.Messages.Add(1)
		}
	}
}

func trafficFor[K comparable](m map[K]*Traffic, key K) *Traffic {
	t, ok := m[key]
	if !ok {
		t = &Traffic{}
		m[key] = t
	}
	return t
}
