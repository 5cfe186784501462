// Package logging builds the process logger.
package logging

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to w at the named level (debug, info, warn or
// error). An unknown level logs at info.
func New(level string, w io.Writer) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Prefix:          "ledger",
	})
}
