package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the process logger. Headless commands log to stderr in
// the configured format. The chat TUI owns the terminal, so it passes a nil
// stderr and logs only reach the log file, if one is set. The returned
// closer releases the log file.
func newLogger(cfg config, stderr io.Writer) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("log level: %w", err)
	}

	var writers []io.Writer
	if stderr != nil {
		if cfg.LogFormat == "text" {
			writers = append(writers, zerolog.ConsoleWriter{Out: stderr})
		} else {
			writers = append(writers, stderr)
		}
	}

	var closer io.Closer = nopCloser{}
	if cfg.LogFile != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		closer = file
		if cfg.LogFormat == "text" {
			writers = append(writers, zerolog.ConsoleWriter{Out: file, NoColor: true})
		} else {
			writers = append(writers, file)
		}
	}

	if len(writers) == 0 {
		return zerolog.Nop(), closer, nil
	}
	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
