// Package logging configures the zerolog logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	appDir   = "sirius"
	fileName = "sirius.log"
)

// Options controls where diagnostics go.
type Options struct {
	Level zerolog.Level

	// ToFile sends JSON lines to the log file instead of stderr. Used while a
	// TUI owns the terminal.
	ToFile bool

	// Path overrides the log file location.
	Path string

	// Writer overrides both stderr and the file. Intended for testing.
	Writer io.Writer
}

// Path returns the default log file location under the user cache directory.
func Path() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("logging: unable to determine cache directory: %w", err)
	}
	return filepath.Join(base, appDir, fileName), nil
}

// Setup builds the logger, installs it as the zerolog global and returns it
// with a function that releases the log file.
func Setup(opts Options) (zerolog.Logger, func() error, error) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	closeFn := func() error { return nil }

	var w io.Writer
	switch {
	case opts.Writer != nil:
		w = opts.Writer
	case opts.ToFile:
		path := opts.Path
		if path == "" {
			var err error
			if path, err = Path(); err != nil {
				return zerolog.Nop(), closeFn, err
			}
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return zerolog.Nop(), closeFn, fmt.Errorf("logging: failed to create directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), closeFn, fmt.Errorf("logging: failed to open %s: %w", path, err)
		}
		w, closeFn = f, f.Close
	default:
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(w).Level(opts.Level).With().Timestamp().Logger()
	log.Logger = logger
	return logger, closeFn, nil
}
