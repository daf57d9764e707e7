// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/spptrace/internal/config"
	"firestige.xyz/spptrace/internal/log"
	"firestige.xyz/spptrace/internal/pipeline"
)

var (
	// Global flags
	configFile string
	logLevel   string

	// settings is loaded once per invocation before any subcommand runs.
	settings *config.GlobalConfig
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "spptrace",
	Short: "spptrace - Bluetooth SPP vendor protocol analyzer",
	Long: `spptrace decodes btsnoop captures of Bluetooth Serial Port Profile traffic
between a host and a vehicle diagnostic adapter.

It walks every record through HCI, ACL/L2CAP and RFCOMM, recovers the
adapter's framed messages (magic 55 55 AA AA), classifies each one and
groups them into sessions.

Features:
  - btsnoop datalink 1001 (flags) and H4-style captures
  - split and message-id header layouts, plus custom layouts
  - configurable classification rules ahead of the built-in chain
  - text report, session view, JSON/YAML/CBOR/pcap/btsnoop export`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults only when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"override log level (trace/debug/info/warn/error)")

	// Add subcommands
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(validateCmd)
}

// loadSettings reads the configuration and initializes logging.
func loadSettings(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
		if err := cfg.ValidateAndApplyDefaults(); err != nil {
			return err
		}
	}
	if err := log.Init(&cfg.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	settings = cfg
	return nil
}

// pipelineBuilder assembles decoder, filters and classifier from settings.
func pipelineBuilder(cfg *config.GlobalConfig) (*pipeline.Builder, error) {
	filters, err := cfg.Filters()
	if err != nil {
		return nil, err
	}
	classifier, err := cfg.NewClassifier()
	if err != nil {
		return nil, err
	}
	return pipeline.NewBuilder().
		WithDecoder(cfg.DecoderConfig(0)).
		WithFilters(filters...).
		WithClassifier(classifier).
		WithLogger(log.GetLogger()), nil
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
