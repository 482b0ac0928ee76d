// Package klog initializes the process-wide zerolog logger, grounded on
// intelligencedev-manifold's internal/observability.InitLogger: write to a
// log file when configured, else stdout, and apply a parsed level.
package klog

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger from a log path (empty means
// stdout) and a level name (empty defaults to info).
func Init(logPath, level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	w := os.Stdout
	if logPath != "" {
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			log.Logger = log.Output(f).With().Timestamp().Logger()
			applyLevel(level)
			return
		} else {
			fmt.Fprintf(os.Stderr, "klog: failed to open log file %q: %v\n", logPath, err)
		}
	}
	log.Logger = log.Output(w).With().Timestamp().Logger()
	applyLevel(level)
}

func applyLevel(level string) {
	level = strings.ToLower(strings.TrimSpace(level))
	lvl := zerolog.InfoLevel
	if level != "" {
		if l, err := zerolog.ParseLevel(level); err == nil {
			lvl = l
		}
	}
	zerolog.SetGlobalLevel(lvl)
}
