// Package report renders decode results as human readable text.
package report

import (
	"cmp"
	"encoding/hex"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"firestige.xyz/spptrace/internal/core"
	"firestige.xyz/spptrace/internal/core/decoder"
	"firestige.xyz/spptrace/internal/pipeline"
)

// Options controls report size.
type Options struct {
	Limit   int // messages listed in full; zero lists none
	Samples int // sample messages dumped per type tag
}

// DefaultOptions are used by the decode command when nothing is configured.
var DefaultOptions = Options{Limit: 30, Samples: 1}

// sampleBytes caps the payload dump of a sample.
const sampleBytes = 64

type styles struct {
	title   lipgloss.Style
	section lipgloss.Style
	meta    lipgloss.Style
}

// newStyles renders colors only when w is a terminal.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		section: r.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		meta:    r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Write renders the full report of one capture.
func Write(w io.Writer, res *pipeline.Result, opts Options) error {
	st := newStyles(w)
	b := &strings.Builder{}

	fmt.Fprintln(b, st.title.Render("Capture "+res.Name))
	fmt.Fprintln(b, st.meta.Render(fmt.Sprintf("link type %d, %s mode, %s layout",
		res.Header.LinkType, res.Mode, res.Layout)))
	fmt.Fprintln(b)

	writeStats(b, st, res.Stats)
	writeChannels(b, st, res)
	writeSubchannels(b, st, res)
	writeTypes(b, st, res)
	writeMessages(b, st, res.Messages, opts.Limit)
	writeSamples(b, st, res.Messages, opts.Samples)
	writeShort(b, st, res.Short)
	writeDevices(b, st, res.Devices)
	writeHints(b, st, res.Hints)

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteTotals renders statistics merged over several captures.
func WriteTotals(w io.Writer, results []*pipeline.Result) error {
	st := newStyles(w)
	b := &strings.Builder{}

	var total decoder.Stats
	messages := 0
	sessions := 0
	for _, r := range results {
		total.Merge(r.Stats)
		messages += len(r.Messages)
		sessions += len(r.Sessions)
	}

	fmt.Fprintln(b, st.title.Render(fmt.Sprintf("Totals over %d captures", len(results))))
	fmt.Fprintf(b, "messages %d, sessions %d\n\n", messages, sessions)
	writeStats(b, st, total)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeStats(b *strings.Builder, st styles, s decoder.Stats) {
	fmt.Fprintln(b, st.section.Render("Records"))
	tw := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  records\t%d\n", s.Records)
	for _, k := range sortedKeys(s.Kinds) {
		fmt.Fprintf(tw, "  %s\t%d\n", strings.ToLower(k), s.Kinds[k])
	}
	fmt.Fprintf(tw, "  filtered\t%d\n", s.Filtered)
	fmt.Fprintf(tw, "  vendor messages\t%d\n", s.VendorMessages)
	fmt.Fprintf(tw, "  short messages\t%d\n", s.ShortMessages)
	fmt.Fprintf(tw, "  fragmented\t%d\n", s.Fragmented)
	fmt.Fprintf(tw, "  non-vendor payloads\t%d\n", s.NonVendor)
	if s.TruncatedTail {
		fmt.Fprintf(tw, "  truncated tail\tyes\n")
	}
	tw.Flush()
	fmt.Fprintln(b)

	fmt.Fprintln(b, st.section.Render(fmt.Sprintf("Drops (%d)", s.TotalDrops())))
	if len(s.Drops) == 0 {
		fmt.Fprintln(b, "  none")
	}
	tw = tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	for _, k := range sortedKeys(s.Drops) {
		fmt.Fprintf(tw, "  %s\t%d\n", k, s.Drops[k])
	}
	tw.Flush()
	fmt.Fprintln(b)
}

func writeChannels(b *strings.Builder, st styles, res *pipeline.Result) {
	fmt.Fprintln(b, st.section.Render("L2CAP channels"))
	tw := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  CID\tNAME\tTX\tRX")
	for _, cid := range sortedKeys(res.Channels) {
		t := res.Channels[cid]
		fmt.Fprintf(tw, "  0x%04X\t%s\t%d\t%d\n", cid, decoder.ChannelName(cid), t.Sent, t.Received)
	}
	tw.Flush()
	fmt.Fprintln(b)
}

func writeSubchannels(b *strings.Builder, st styles, res *pipeline.Result) {
	fmt.Fprintln(b, st.section.Render("RFCOMM channels"))
	tw := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  DLCI\tSERVER CHANNEL\tTX\tRX")
	for _, dlci := range sortedKeys(res.Subchannels) {
		t := res.Subchannels[dlci]
		fmt.Fprintf(tw, "  %d\t%d\t%d\t%d\n", dlci, dlci>>1, t.Sent, t.Received)
	}
	tw.Flush()
	fmt.Fprintln(b)
}

func writeTypes(b *strings.Builder, st styles, res *pipeline.Result) {
	counts := res.TypeCounts()
	fmt.Fprintln(b, st.section.Render(fmt.Sprintf("Message types (%d messages, %d sessions)",
		len(res.Messages), len(res.Sessions))))

	tags := slices.Collect(maps.Keys(counts))
	slices.SortFunc(tags, func(a, c string) int {
		if n := cmp.Compare(counts[c], counts[a]); n != 0 {
			return n
		}
		return cmp.Compare(a, c)
	})

	tw := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	for _, tag := range tags {
		pct := 100 * float64(counts[tag]) / float64(len(res.Messages))
		fmt.Fprintf(tw, "  %s\t%d\t%.1f%%\n", tag, counts[tag], pct)
	}
	tw.Flush()
	fmt.Fprintln(b)
}

func writeMessages(b *strings.Builder, st styles, msgs []*core.ClassifiedMessage, limit int) {
	if limit <= 0 || len(msgs) == 0 {
		return
	}
	n := min(limit, len(msgs))
	fmt.Fprintln(b, st.section.Render(fmt.Sprintf("First %d messages", n)))

	tw := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  SEQ\tDIR\tSESSION\tCOUNTER\tSTATUS\tRESERVED\tLEN\tTYPE\tTEXT")
	for _, cm := range msgs[:n] {
		m := cm.Message
		fmt.Fprintf(tw, "  %d\t%s\t0x%08X\t%d\t0x%02X\t0x%02X\t%d\t%s\t%s\n",
			m.Sequence, m.Direction, m.SessionID, m.MessageCounter,
			m.StatusCode, m.Reserved, len(m.Payload), cm.TypeTag, truncate(m.ASCIIExcerpt, 32))
	}
	tw.Flush()
	fmt.Fprintln(b)
}

// writeSamples dumps the first perType messages of every type.
func writeSamples(b *strings.Builder, st styles, msgs []*core.ClassifiedMessage, perType int) {
	if perType <= 0 || len(msgs) == 0 {
		return
	}
	fmt.Fprintln(b, st.section.Render("Samples"))

	seen := make(map[string]int)
	for _, cm := range msgs {
		if seen[cm.TypeTag] >= perType {
			continue
		}
		seen[cm.TypeTag]++

		m := cm.Message
		fmt.Fprintf(b, "  %s  seq %d %s session 0x%08X counter %d flags 0x%08X\n",
			cm.TypeTag, m.Sequence, m.Direction, m.SessionID, m.MessageCounter, m.Flags)
		if m.TrailingCheck != nil {
			fmt.Fprintf(b, "    check 0x%08X\n", *m.TrailingCheck)
		}
		if m.Fragmented {
			fmt.Fprintln(b, "    fragmented")
		}
		payload := m.Payload
		if len(payload) > sampleBytes {
			payload = payload[:sampleBytes]
		}
		for _, line := range strings.Split(strings.TrimRight(hex.Dump(payload), "\n"), "\n") {
			if line != "" {
				fmt.Fprintf(b, "    %s\n", line)
			}
		}
	}
	fmt.Fprintln(b)
}

// writeShort lists vendor frames whose header was cut short.
func writeShort(b *strings.Builder, st styles, msgs []*core.VendorMessage) {
	if len(msgs) == 0 {
		return
	}
	fmt.Fprintln(b, st.section.Render(fmt.Sprintf("Short messages (%d)", len(msgs))))
	tw := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  SEQ\tDIR\tDLCI\tOFFSET\tLEN\tRAW")
	for _, m := range msgs {
		raw := m.Raw
		suffix := ""
		if len(raw) > sampleBytes {
			raw, suffix = raw[:sampleBytes], "..."
		}
		fmt.Fprintf(tw, "  %d\t%s\t%d\t%d\t%d\t% X%s\n",
			m.Sequence, m.Direction, m.SubchannelID, m.HeaderOffset, len(m.Raw), raw, suffix)
	}
	tw.Flush()
	fmt.Fprintln(b)
}

func writeDevices(b *strings.Builder, st styles, devices []core.Device) {
	if len(devices) == 0 {
		return
	}
	fmt.Fprintln(b, st.section.Render("Devices"))
	tw := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  HANDLE\tADDRESS\tNAME\tENCRYPTED\tSTATE")
	for _, d := range devices {
		enc := "no"
		if d.Encrypted {
			enc = "yes"
		}
		name := d.Name
		if name == "" {
			name = "-"
		}
		state := "connected"
		if d.Disconnected {
			state = fmt.Sprintf("disconnected (0x%02X)", d.DisconnectReason)
		}
		fmt.Fprintf(tw, "  0x%03X\t%s\t%s\t%s\t%s\n", d.Handle, d.AddressString(), name, enc, state)
	}
	tw.Flush()
	fmt.Fprintln(b)
}

func writeHints(b *strings.Builder, st styles, hints map[string]int) {
	if len(hints) == 0 {
		return
	}
	fmt.Fprintln(b, st.section.Render("OBD-II hints in non-vendor payloads"))
	tw := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	for _, h := range sortedKeys(hints) {
		fmt.Fprintf(tw, "  %s\t%d\n", h, hints[h])
	}
	tw.Flush()
	fmt.Fprintln(b)
}

// WriteSessions renders every session with its advisory exchanges.
func WriteSessions(w io.Writer, res *pipeline.Result) error {
	st := newStyles(w)
	b := &strings.Builder{}

	fmt.Fprintln(b, st.title.Render(fmt.Sprintf("Sessions in %s (%d)", res.Name, len(res.Sessions))))
	fmt.Fprintln(b)

	for _, s := range res.Sessions {
		mono := "monotonic"
		if !s.CounterMonotonic() {
			mono = "counter steps back"
		}
		fmt.Fprintln(b, st.section.Render(fmt.Sprintf("Session 0x%08X", s.ID)))
		fmt.Fprintln(b, st.meta.Render(fmt.Sprintf("  %d sent, %d received, %s",
			len(s.Sent), len(s.Received), mono)))

		tw := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  REQUEST\tSEQ\tRESPONSE\tSEQ")
		for _, ex := range s.Exchanges() {
			reqTag, reqSeq := side(ex.Request)
			respTag, respSeq := side(ex.Response)
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", reqTag, reqSeq, respTag, respSeq)
		}
		tw.Flush()
		fmt.Fprintln(b)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func side(cm *core.ClassifiedMessage) (tag, seq string) {
	if cm == nil {
		return "-", "-"
	}
	return cm.TypeTag, fmt.Sprintf("%d", cm.Message.Sequence)
}

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
