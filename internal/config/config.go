// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"firestige.xyz/spptrace/internal/core"
	"firestige.xyz/spptrace/internal/core/decoder"
	"firestige.xyz/spptrace/internal/correlator"
	"firestige.xyz/spptrace/internal/filter"
	"firestige.xyz/spptrace/internal/log"
)

// rootKey is the YAML root wrapper; env vars follow as SPPTRACE_<SECTION>_<KEY>.
const rootKey = "spptrace"

// GlobalConfig is the whole configuration, found under `spptrace:` in YAML.
type GlobalConfig struct {
	Log        log.Config       `mapstructure:"log"`
	Decoder    DecoderConfig    `mapstructure:"decoder"`
	Filter     FilterConfig     `mapstructure:"filter"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Report     ReportConfig     `mapstructure:"report"`
	Workers    int              `mapstructure:"workers"` // 0 = GOMAXPROCS
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ─── Decoder ───

// DecoderConfig configures the protocol decoder.
type DecoderConfig struct {
	LinkType     uint32           `mapstructure:"link_type"`      // 0 = use the capture header
	MinChannelID uint16           `mapstructure:"min_channel_id"` // first RFCOMM-eligible L2CAP CID
	Subchannels  []uint8          `mapstructure:"subchannels"`    // DLCIs to keep; empty = all
	Layout       string           `mapstructure:"layout"`         // split | message-id | custom name
	Layouts      []decoder.Layout `mapstructure:"-"`              // custom layouts, decoded separately
}

// ─── Filter ───

// FilterConfig selects records before decoding results are kept.
type FilterConfig struct {
	Directions []string `mapstructure:"directions"` // tx / rx; empty = both
	BPF        string   `mapstructure:"bpf"`        // `tcpdump -ddd` program over H4-with-phdr
}

// ─── Classifier ───

// ClassifierConfig holds rules evaluated ahead of the built-in chain.
type ClassifierConfig struct {
	Rules []correlator.RuleSpec `mapstructure:"-"`
}

// ─── Report ───

// ReportConfig controls the text report.
type ReportConfig struct {
	Limit   int `mapstructure:"limit"`   // messages listed in full
	Samples int `mapstructure:"samples"` // samples per type tag
}

// ─── Metrics ───

// MetricsConfig controls the Prometheus textfile written after a run.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `spptrace: ...`.
type configRoot struct {
	Spptrace GlobalConfig `mapstructure:"spptrace"`
}

// Load loads configuration from path. An empty path yields defaults plus
// environment overrides.
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `spptrace.` key prefix maps to `SPPTRACE_` in env vars via the
	// key replacer (e.g. "spptrace.log.level" -> "SPPTRACE_LOG_LEVEL").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Spptrace

	if err := decodeHex(v.Get(rootKey+".classifier.rules"), &cfg.Classifier.Rules); err != nil {
		return nil, fmt.Errorf("%w: classifier.rules: %v", core.ErrConfigInvalid, err)
	}
	if err := decodeHex(v.Get(rootKey+".decoder.layouts"), &cfg.Decoder.Layouts); err != nil {
		return nil, fmt.Errorf("%w: decoder.layouts: %v", core.ErrConfigInvalid, err)
	}

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values. All keys carry the root prefix.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault(rootKey+".log.level", "info")
	v.SetDefault(rootKey+".log.pattern", log.DefaultPattern)
	v.SetDefault(rootKey+".log.time", log.DefaultTimeFormat)
	v.SetDefault(rootKey+".log.file.enabled", false)
	v.SetDefault(rootKey+".log.file.path", "spptrace.log")
	v.SetDefault(rootKey+".log.file.max_size_mb", 100)
	v.SetDefault(rootKey+".log.file.max_age_days", 30)
	v.SetDefault(rootKey+".log.file.max_backups", 5)
	v.SetDefault(rootKey+".log.file.compress", true)

	// Decoder defaults
	v.SetDefault(rootKey+".decoder.link_type", 0)
	v.SetDefault(rootKey+".decoder.min_channel_id", decoder.DynamicChannelBase)
	v.SetDefault(rootKey+".decoder.layout", decoder.LayoutSplit.Name)

	// Report defaults
	v.SetDefault(rootKey+".report.limit", 30)
	v.SetDefault(rootKey+".report.samples", 1)

	v.SetDefault(rootKey+".workers", 0)
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := []string{"trace", "debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(cfg.Log.Level)) {
		return fmt.Errorf("%w: invalid log level: %s (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return fmt.Errorf("%w: log.file.path is required when log.file.enabled=true", core.ErrConfigInvalid)
	}

	// ── Decoder ──
	for _, l := range cfg.Decoder.Layouts {
		if err := l.Validate(); err != nil {
			return err
		}
	}
	if _, err := cfg.Layout(); err != nil {
		return err
	}

	// ── Filter / classifier ──
	if _, err := cfg.Filters(); err != nil {
		return err
	}
	if _, err := cfg.NewClassifier(); err != nil {
		return err
	}

	// ── Report / workers ──
	if cfg.Report.Limit < 0 || cfg.Report.Samples < 0 {
		return fmt.Errorf("%w: report.limit and report.samples must not be negative", core.ErrConfigInvalid)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", core.ErrConfigInvalid)
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return nil
}

// Layout resolves the configured vendor header layout. Custom layouts
// shadow built-ins of the same name.
func (cfg *GlobalConfig) Layout() (decoder.Layout, error) {
	name := cfg.Decoder.Layout
	if name == "" {
		return decoder.LayoutSplit, nil
	}
	for _, l := range cfg.Decoder.Layouts {
		if l.Name == name {
			return l, nil
		}
	}
	if l, ok := decoder.LookupLayout(name); ok {
		return l, nil
	}
	return decoder.Layout{}, fmt.Errorf("%w: unknown decoder.layout %q (built-in: %s)",
		core.ErrConfigInvalid, name, strings.Join(decoder.LayoutNames(), ", "))
}

// DecoderConfig builds the decoder settings. linkType comes from the capture
// header and is overridden by decoder.link_type when set.
func (cfg *GlobalConfig) DecoderConfig(linkType uint32) decoder.Config {
	layout, err := cfg.Layout()
	if err != nil {
		layout = decoder.LayoutSplit
	}
	if cfg.Decoder.LinkType != 0 {
		linkType = cfg.Decoder.LinkType
	}
	return decoder.Config{
		LinkType:     linkType,
		MinChannelID: cfg.Decoder.MinChannelID,
		Subchannels:  cfg.Decoder.Subchannels,
		Layout:       layout,
	}
}

// Filters builds the record filters in evaluation order.
func (cfg *GlobalConfig) Filters() ([]filter.Filter, error) {
	var filters []filter.Filter
	if len(cfg.Filter.Directions) > 0 {
		f, err := filter.NewDirectionFilter(cfg.Filter.Directions)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	if strings.TrimSpace(cfg.Filter.BPF) != "" {
		f, err := filter.NewBPFFilter(cfg.Filter.BPF)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// NewClassifier returns the built-in chain with configured rules prepended.
func (cfg *GlobalConfig) NewClassifier() (*correlator.Classifier, error) {
	rules, err := correlator.CompileRules(cfg.Classifier.Rules)
	if err != nil {
		return nil, err
	}
	c := correlator.DefaultClassifier()
	c.Prepend(rules...)
	return c, nil
}
