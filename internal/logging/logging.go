// Package logging builds the charmbracelet loggers shared by every command.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// New returns a stderr logger at level. Unknown levels fall back to info.
func New(level, prefix string) *log.Logger {
	return NewWriter(os.Stderr, level, prefix)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, level, prefix string) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          prefix,
		Level:           ParseLevel(level),
	})
}

// ParseLevel maps a level name to a log.Level, defaulting to info.
func ParseLevel(level string) log.Level {
	if level == "" {
		return log.InfoLevel
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
