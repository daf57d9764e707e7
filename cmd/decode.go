package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/spptrace/internal/config"
	"firestige.xyz/spptrace/internal/log"
	"firestige.xyz/spptrace/internal/metrics"
	"firestige.xyz/spptrace/internal/pipeline"
	"firestige.xyz/spptrace/internal/report"
)

type decodeOptions struct {
	limit       int
	samples     int
	workers     int
	metricsFile string
}

var decodeOpts decodeOptions

var decodeCmd = &cobra.Command{
	Use:   "decode <capture>...",
	Short: "Decode captures and print a report",
	Long: `Decode one or more btsnoop captures and print a text report per capture:
drop counts, L2CAP and RFCOMM channel tables, the message type distribution,
the first messages, samples per type and the devices seen in HCI events.

Examples:
  spptrace decode btsnoop_hci.log
  spptrace decode --limit 100 --samples 2 a.log b.log
  spptrace decode -c spptrace.yml --metrics-file /var/lib/node_exporter/spptrace.prom a.log`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := decodeOpts
		if !cmd.Flags().Changed("limit") {
			opts.limit = settings.Report.Limit
		}
		if !cmd.Flags().Changed("samples") {
			opts.samples = settings.Report.Samples
		}
		if !cmd.Flags().Changed("workers") {
			opts.workers = settings.Workers
		}
		if !cmd.Flags().Changed("metrics-file") {
			opts.metricsFile = settings.Metrics.Textfile
		}
		return runDecode(cmd.Context(), cmd.OutOrStdout(), settings, args, opts)
	},
}

func init() {
	decodeCmd.Flags().IntVar(&decodeOpts.limit, "limit", report.DefaultOptions.Limit,
		"number of messages listed in full")
	decodeCmd.Flags().IntVar(&decodeOpts.samples, "samples", report.DefaultOptions.Samples,
		"sample messages dumped per type")
	decodeCmd.Flags().IntVar(&decodeOpts.workers, "workers", 0,
		"captures decoded concurrently (0 = config)")
	decodeCmd.Flags().StringVar(&decodeOpts.metricsFile, "metrics-file", "",
		"write Prometheus metrics to this textfile")
}

func runDecode(ctx context.Context, out io.Writer, cfg *config.GlobalConfig, paths []string, opts decodeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	builder, err := pipelineBuilder(cfg)
	if err != nil {
		return err
	}

	var collector *metrics.Collector
	if opts.metricsFile != "" {
		collector = metrics.NewCollector()
		builder.WithMetrics(collector)
	}
	progress := &pipeline.Progress{}
	builder.WithProgress(progress)

	results, err := pipeline.RunFiles(ctx, paths, builder.Config(), opts.workers)
	if err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}

	ropts := report.Options{Limit: opts.limit, Samples: opts.samples}
	for _, res := range results {
		if err := report.Write(out, res, ropts); err != nil {
			return err
		}
	}
	if len(results) > 1 {
		if err := report.WriteTotals(out, results); err != nil {
			return err
		}
	}

	if collector != nil {
		if err := collector.WriteTextfile(opts.metricsFile); err != nil {
			return err
		}
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"files":    progress.Files.Load(),
		"records":  progress.Records.Load(),
		"messages": progress.Messages.Load(),
	}).Debug("decode finished")
	return nil
}
