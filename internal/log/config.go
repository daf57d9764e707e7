package log

// Config configures the logger.
type Config struct {
	Level   string     `mapstructure:"level"`
	Pattern string     `mapstructure:"pattern"`
	Time    string     `mapstructure:"time"`
	File    FileConfig `mapstructure:"file"`
}

// FileConfig enables a rotated log file.
type FileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}
