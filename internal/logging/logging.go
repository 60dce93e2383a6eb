// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Options selects where and how much the logger writes.
type Options struct {
	Level string
	// File is appended to in addition to Stderr when set.
	File   string
	Stderr io.Writer
	JSON   bool
	Fs     afero.Fs
}

// New returns a configured logger and a func that closes any opened log file.
func New(options Options) (*logrus.Logger, func() error, error) {
	logger := logrus.New()
	closer := func() error { return nil }

	level := options.Level
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, closer, fmt.Errorf("unknown log level %s", level)
	}
	logger.SetLevel(parsed)

	if options.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	out := options.Stderr
	if out == nil {
		out = os.Stderr
	}

	if options.File != "" {
		fs := options.Fs
		if fs == nil {
			fs = afero.NewOsFs()
		}
		if err := fs.MkdirAll(filepath.Dir(options.File), 0o755); err != nil {
			return nil, closer, fmt.Errorf("create log dir: %w", err)
		}
		file, err := fs.OpenFile(options.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closer, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(out, file)
		closer = file.Close
	}
	logger.SetOutput(out)

	// fyne and the runtime sometimes print through the standard logger.
	stdlog.SetOutput(logger.WriterLevel(logrus.DebugLevel))

	return logger, closer, nil
}
