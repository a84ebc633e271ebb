// Package logging holds the package-level debug loggers shared by the
// controller, the caches and the scanner.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// EnvDebug enables debug logging to debug.log when set
const EnvDebug = "FACETMAP_DEBUG"

var (
	Debug   *log.Logger
	Scanner *log.Logger
	Enabled bool
)

func init() {
	if os.Getenv(EnvDebug) == "" {
		Disable()
		return
	}

	// Open debug.log once for all loggers
	debugFile, err := os.OpenFile("debug.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		Enable(os.Stderr)
		return
	}
	Enable(debugFile)
}

// Enable sends both loggers to w at debug level
func Enable(w io.Writer) {
	Debug = newLogger(w, "")
	Scanner = newLogger(w, "scanner")
	Enabled = true
}

// Disable discards everything below fatal
func Disable() {
	Debug = log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
	Scanner = log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
	Enabled = false
}

func newLogger(w io.Writer, prefix string) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000000",
		Level:           log.DebugLevel,
		Prefix:          prefix,
	})
}
