// Package logging builds the process logger: text output on stdout, teed to
// a size-rotated file when one is configured.
package logging

import (
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig configures rotated file output. An empty Filename disables it.
type FileConfig struct {
	Filename   string `yaml:"logFile"`
	MaxSizeMB  int    `yaml:"logMaxSizeMB"`
	MaxBackups int    `yaml:"logMaxBackups"`
	MaxAgeDays int    `yaml:"logMaxAgeDays"`
	Compress   bool   `yaml:"logCompress"`
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a text logger writing to stdout and, when file.Filename is set,
// to the rotated log file. The closer releases the file.
func New(stdout io.Writer, level slog.Leveler, file FileConfig) (*slog.Logger, io.Closer) {
	if stdout == nil {
		stdout = os.Stdout
	}

	w := stdout
	var closer io.Closer = nopCloser{}
	if file.Filename != "" {
		lj := &lumberjack.Logger{
			Filename:   file.Filename,
			MaxSize:    file.MaxSizeMB, // MB
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
			Compress:   file.Compress,
		}
		if lj.MaxSize == 0 {
			lj.MaxSize = 32
		}
		w = io.MultiWriter(stdout, lj)
		closer = lj
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	if file.Filename != "" {
		logger.Debug("logging to file",
			slog.String("file", file.Filename),
			slog.Time("start", time.Now()),
			slog.String("GOOS", runtime.GOOS),
			slog.String("GOARCH", runtime.GOARCH))
	}

	return logger, closer
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(name string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
