package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/spptrace/internal/config"
	"firestige.xyz/spptrace/internal/export"
	"firestige.xyz/spptrace/internal/pipeline"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export <capture>",
	Short: "Export decoded messages or filtered records",
	Long: `Decode a capture and write the result in a machine readable format.

json, yaml and cbor carry the classified messages, sessions and statistics.
pcap (LINKTYPE_BLUETOOTH_HCI_H4_WITH_PHDR) and btsnoop carry the records that
passed the configured filters.

Examples:
  spptrace export btsnoop_hci.log -f json -o messages.json
  spptrace export btsnoop_hci.log -f pcap -o trace.pcap
  spptrace export btsnoop_hci.log -f yaml              # to stdout`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd.Context(), cmd.OutOrStdout(), settings, args[0], exportFormat, exportOutput)
	},
}

func init() {
	names := make([]string, 0, len(export.Formats))
	for _, f := range export.Formats {
		names = append(names, string(f))
	}
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", string(export.FormatJSON),
		"output format ("+strings.Join(names, "|")+")")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "-",
		"output file, - for stdout")
}

func runExport(ctx context.Context, stdout io.Writer, cfg *config.GlobalConfig, path, format, output string) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	builder, err := pipelineBuilder(cfg)
	if err != nil {
		return err
	}
	if f.NeedsRecords() {
		builder.KeepRecords()
	}

	res, err := pipeline.RunFile(ctx, path, builder.Config())
	if err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}

	out := stdout
	if output != "" && output != "-" {
		file, cerr := os.Create(output)
		if cerr != nil {
			return fmt.Errorf("create %s: %w", output, cerr)
		}
		defer func() {
			if cerr := file.Close(); err == nil {
				err = cerr
			}
		}()
		out = file
	}

	w := bufio.NewWriter(out)
	if err := export.Write(w, f, res); err != nil {
		return err
	}
	return w.Flush()
}
