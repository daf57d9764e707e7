package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/spptrace/internal/core/btsnoop"
	"firestige.xyz/spptrace/internal/core/decoder"
	"firestige.xyz/spptrace/internal/pipeline"
	"firestige.xyz/spptrace/internal/source"
)

const pcapSnaplen = 65535

// ErrNoRecords is returned when a record format is requested from a result
// that was decoded without keeping records.
var ErrNoRecords = errors.New("export: result carries no capture records")

// WritePcap writes the accepted records as a pcap file readable by
// Wireshark. Records whose packet class is unknown are skipped.
func WritePcap(w io.Writer, res *pipeline.Result) error {
	if res.Records == nil {
		return ErrNoRecords
	}

	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(pcapSnaplen, source.LinkTypeH4WithPHDR); err != nil {
		return fmt.Errorf("write pcap header: %w", err)
	}

	for _, rec := range res.Records {
		frame, err := decoder.ClassifyRecord(rec, res.Mode)
		if err != nil {
			continue
		}
		data, ok := decoder.EncodeH4(frame)
		if !ok {
			continue
		}
		length := len(data)
		if orig := int(rec.OriginalLength); orig > len(rec.Data) {
			length += orig - len(rec.Data)
		}
		ci := gopacket.CaptureInfo{
			Timestamp:     rec.Time(),
			CaptureLength: len(data),
			Length:        length,
		}
		if err := pw.WritePacket(ci, data); err != nil {
			return fmt.Errorf("write pcap record %d: %w", rec.Sequence, err)
		}
	}
	return nil
}

// WriteBtsnoop writes the accepted records as a btsnoop file with the
// original header.
func WriteBtsnoop(w io.Writer, res *pipeline.Result) error {
	if res.Records == nil {
		return ErrNoRecords
	}

	bw, err := btsnoop.NewWriter(w, res.Header)
	if err != nil {
		return err
	}
	for _, rec := range res.Records {
		if err := bw.WriteRecord(rec); err != nil {
			return err
		}
	}
	return nil
}
