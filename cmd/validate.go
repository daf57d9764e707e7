package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/spptrace/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration given with --config, apply defaults and environment
overrides, and check layouts, filters and classification rules.

Examples:
  spptrace validate -c spptrace.yml
  SPPTRACE_DECODER_LAYOUT=message-id spptrace validate`,
	Args: cobra.NoArgs,
	// Loading happens here so that an invalid file reports INVALID rather
	// than failing in the root pre-run.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(cmd.OutOrStdout(), configFile); err != nil {
			exitWithError("INVALID", err)
		}
	},
}

func runValidate(out io.Writer, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	layout, err := cfg.Layout()
	if err != nil {
		return err
	}
	filters, err := cfg.Filters()
	if err != nil {
		return err
	}

	source := path
	if source == "" {
		source = "defaults"
	}
	fmt.Fprintf(out, "VALID: %s - layout %q, %d custom layout(s), %d rule(s), %d filter(s), %d worker(s)\n",
		source,
		layout.Name,
		len(cfg.Decoder.Layouts),
		len(cfg.Classifier.Rules),
		len(filters),
		cfg.Workers,
	)
	return nil
}
