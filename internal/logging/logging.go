// Package logging configures the logger of one demo run. It must be called
// before the harness is constructed so that the log file carries the
// demo's base name from the first line on.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"petermann-digital.de/pulsar-workshop/internal/config"
)

// FileExt is appended to the log file base name.
const FileExt = ".log"

// New builds a logger writing to stderr and, when settings name a log
// directory, to <dir>/<baseName>.log. The returned function closes the file.
func New(settings config.Settings, baseName string) (*logrus.Logger, func() error, error) {
	return NewTo(settings, baseName, os.Stderr)
}

// NewTo is New with an explicit console writer.
func NewTo(settings config.Settings, baseName string, console io.Writer) (*logrus.Logger, func() error, error) {
	logger := logrus.New()
	logger.SetLevel(settings.LogLevel())

	if settings.LogFormat() == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   true,
			FullTimestamp: true,
		})
	}

	closer := func() error { return nil }
	out := console

	if dir := settings.LogDir(); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir %s: %w", dir, err)
		}
		path := filepath.Join(dir, baseName+FileExt)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		out = io.MultiWriter(console, f)
		closer = f.Close
	}

	logger.SetOutput(out)
	return logger, closer, nil
}
