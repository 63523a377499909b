// Package logging opens the application's leveled log file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gologme/log"

	"github.com/nhle/mailclient/internal/model"
)

// levels in increasing verbosity.
var levels = []string{"error", "warn", "info", "debug", "trace"}

// Open creates the log file described by cfg and returns a logger writing to
// it, together with the file so the caller can close it on exit.
func Open(cfg model.LogConfig) (*log.Logger, io.Closer, error) {
	if cfg.File == "" {
		return Discard(), io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file %s: %w", cfg.File, err)
	}

	return New(f, cfg.Level), f, nil
}

// New returns a logger writing to w with every level up to and including
// level enabled. Unknown levels fall back to info.
func New(w io.Writer, level string) *log.Logger {
	logger := log.New(w, "", log.LstdFlags|log.Lmicroseconds)
	for _, l := range levels {
		logger.EnableLevel(l)
		if l == normalise(level) {
			break
		}
	}
	return logger
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func normalise(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	for _, l := range levels {
		if l == level {
			return l
		}
	}
	return "info"
}
