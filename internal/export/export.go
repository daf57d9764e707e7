// Package export writes decode results in machine readable formats.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"firestige.xyz/spptrace/internal/core"
	"firestige.xyz/spptrace/internal/pipeline"
)

// Format is an export format name.
type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatCBOR    Format = "cbor"
	FormatPcap    Format = "pcap"
	FormatBtsnoop Format = "btsnoop"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatYAML, FormatCBOR, FormatPcap, FormatBtsnoop}

// ParseFormat resolves a format name, case-insensitively.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	if f == "yml" {
		f = FormatYAML
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, name)
}

// NeedsRecords reports whether f writes capture records rather than messages.
func (f Format) NeedsRecords() bool {
	return f == FormatPcap || f == FormatBtsnoop
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Write encodes res to w.
func Write(w io.Writer, f Format, res *pipeline.Result) error {
	switch f {
	case FormatJSON:
		out, err := json.MarshalIndent(NewDocument(res), "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = w.Write(append(out, '\n'))
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(NewDocument(res)); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatCBOR:
		em, err := cbor.CoreDetEncOptions().EncMode()
		if err != nil {
			return err
		}
		if err := em.NewEncoder(w).Encode(NewDocument(res)); err != nil {
			return fmt.Errorf("encode cbor: %w", err)
		}
		return nil
	case FormatPcap:
		return WritePcap(w, res)
	case FormatBtsnoop:
		return WriteBtsnoop(w, res)
	default:
		return fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, string(f))
	}
}
