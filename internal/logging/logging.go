// Package logging holds the logger shared by the parfor packages.
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

var logger atomic.Pointer[log.Logger]

func init() {
	logger.Store(newLogger(os.Stderr, log.WarnLevel))
}

func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       log.TextFormatter,
		ReportTimestamp: true,
		Prefix:          "parfor",
	})
}

// Logger returns the current logger.
func Logger() *log.Logger {
	return logger.Load()
}

// SetLevel changes the level of the current logger.
func SetLevel(level log.Level) {
	logger.Load().SetLevel(level)
}

// SetOutput replaces the logger with one writing to w, keeping the level.
func SetOutput(w io.Writer) {
	logger.Store(newLogger(w, logger.Load().GetLevel()))
}

// ParseLevel parses a level name; the empty string means warn.
func ParseLevel(s string) (log.Level, error) {
	if strings.TrimSpace(s) == "" {
		return log.WarnLevel, nil
	}
	return log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
}
