// Package log provides the process logger, backed by logrus.
package log

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

const (
	DefaultPattern    = "%time [%level] %msg %field\n"
	DefaultTimeFormat = "2006-01-02 15:04:05.000"
)

var (
	mu     sync.RWMutex
	logger Logger = newAdapter(&Config{Level: "info"}, os.Stderr)
)

// GetLogger returns the process logger. It is usable before Init and logs
// at info level to stderr until then.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Init replaces the process logger according to cfg. Appenders of the
// previous logger are closed.
func Init(cfg *Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	prev := logger
	logger = l
	mu.Unlock()

	if a, ok := prev.(*logrusAdapter); ok {
		if w, ok := a.entry.Logger.Out.(*MultiWriter); ok {
			return w.Close()
		}
	}
	return nil
}

// New builds a logger writing to stderr and, when enabled, a rotated file.
func New(cfg *Config) (Logger, error) {
	if _, err := logrus.ParseLevel(cfg.Level); err != nil && cfg.Level != "" {
		return nil, err
	}
	w := NewMultiWriter().Add(os.Stderr)
	if cfg.File.Enabled {
		w.AddFileAppender(FileAppenderOpt{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		})
	}
	return newAdapter(cfg, w), nil
}

// NewWithWriter builds a logger writing only to w.
func NewWithWriter(cfg *Config, w io.Writer) Logger {
	return newAdapter(cfg, w)
}
