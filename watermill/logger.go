package watermill

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

var _ watermill.LoggerAdapter = (*Logger)(nil)

// Logger adapts a zerolog logger to watermill.LoggerAdapter.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger returns an adapter writing to l.
func NewLogger(l zerolog.Logger) *Logger {
	return &Logger{logger: l}
}

func (w *Logger) Error(msg string, err error, fields watermill.LogFields) {
	w.logger.Error().Fields(map[string]any(fields)).Err(err).Msg(msg)
}

// Info logs at debug level; watermill is chatty.
func (w *Logger) Info(msg string, fields watermill.LogFields) {
	w.logger.Debug().Fields(map[string]any(fields)).Msg(msg)
}

func (w *Logger) Debug(msg string, fields watermill.LogFields) {
	w.logger.Debug().Fields(map[string]any(fields)).Msg(msg)
}

func (w *Logger) Trace(msg string, fields watermill.LogFields) {
	w.logger.Trace().Fields(map[string]any(fields)).Msg(msg)
}

func (w *Logger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &Logger{logger: w.logger.With().Fields(map[string]any(fields)).Logger()}
}
