package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/spptrace/internal/config"
	"firestige.xyz/spptrace/internal/pipeline"
	"firestige.xyz/spptrace/internal/report"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions <capture>",
	Short: "List sessions and their request/response exchanges",
	Long: `Decode a capture and print every session in first-seen order. Each sent
message is paired with the next received message of the same session; the
pairing is advisory.

Examples:
  spptrace sessions btsnoop_hci.log`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessions(cmd.Context(), cmd.OutOrStdout(), settings, args[0])
	},
}

func runSessions(ctx context.Context, out io.Writer, cfg *config.GlobalConfig, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	builder, err := pipelineBuilder(cfg)
	if err != nil {
		return err
	}

	res, err := pipeline.RunFile(ctx, path, builder.Config())
	if err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	return report.WriteSessions(out, res)
}
