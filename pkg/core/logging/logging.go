// Package logging builds the structured loggers shared by the engine, the API
// server and the CLI.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/phuslu/log"
)

// Config selects level and output format.
type Config struct {
	Level  string `yaml:"level" json:"level"`   // trace|debug|info|warn|error
	Format string `yaml:"format" json:"format"` // console|json
	Color  bool   `yaml:"color" json:"color"`
}

// New returns a logger writing to stderr.
func New(cfg Config) *log.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter returns a logger writing to w.
func NewWithWriter(cfg Config, w io.Writer) *log.Logger {
	level := cfg.Level
	if level == "" {
		level = "info"
	}

	var writer log.Writer
	switch strings.ToLower(cfg.Format) {
	case "json":
		writer = &log.IOWriter{Writer: w}
	default:
		writer = &log.ConsoleWriter{
			ColorOutput:    cfg.Color,
			QuoteString:    true,
			EndWithMessage: true,
			Writer:         w,
		}
	}

	return &log.Logger{
		Level:      log.ParseLevel(level),
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Writer:     writer,
	}
}

// Component derives a child logger tagged with component=name.
func Component(parent *log.Logger, name string) *log.Logger {
	if parent == nil {
		parent = Nop()
	}
	child := *parent
	child.Context = log.NewContext(append([]byte(nil), parent.Context...)).Str("component", name).Value()
	return &child
}

// Nop discards everything. Used by tests and as the default for optional loggers.
func Nop() *log.Logger {
	return &log.Logger{
		Level:  log.PanicLevel,
		Writer: &log.IOWriter{Writer: io.Discard},
	}
}
