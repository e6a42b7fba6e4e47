package omniagent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/omni"
	"github.com/rs/zerolog"
)

// stream implements [omni.Stream] by parsing SSE records from an HTTP
// response body.
type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	ctx     context.Context
	logger  zerolog.Logger
	state   omni.StreamState
	err     error // terminal error, if any
}

// Interface compliance check.
var _ omni.Stream = (*stream)(nil)

func newStream(ctx context.Context, body io.ReadCloser, logger zerolog.Logger) *stream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
	return &stream{
		body:    body,
		scanner: sc,
		ctx:     ctx,
		logger:  logger,
		state:   omni.StreamStateNew,
	}
}

// Next reads the next usable event from the SSE stream.
// Returns io.EOF when the backend closes the stream.
func (s *stream) Next() (omni.Event, error) {
	switch s.state {
	case omni.StreamStateComplete:
		return nil, io.EOF
	case omni.StreamStateError:
		return nil, s.err
	case omni.StreamStateClosed:
		return nil, omni.ErrStreamClosed
	}

	for {
		data, err := s.readRecord()
		if err != nil {
			s.terminate(err)
			return nil, s.err
		}

		s.state = omni.StreamStateStreaming

		var env envelope
		evt, err := decodeInto(data, &env)
		if err != nil {
			s.logger.Debug().Err(err).Int("bytes", len(data)).Msg("omniagent: dropped envelope")
			continue
		}
		if evt == nil {
			s.logger.Trace().Str("type", env.Type).Str("run_id", env.RunID).Msg("omniagent: skipped envelope")
			continue
		}
		s.logger.Trace().
			Str("type", env.Type).
			Str("run_id", env.RunID).
			Str("trace_id", env.TraceID).
			Int64("ts_ms", env.TsMs).
			Msg("omniagent: envelope")
		return evt, nil
	}
}

// State returns the current stream state.
func (s *stream) State() omni.StreamState {
	return s.state
}

// Close closes the underlying HTTP response body.
func (s *stream) Close() error {
	if s.state != omni.StreamStateComplete && s.state != omni.StreamStateError {
		s.state = omni.StreamStateClosed
	}
	return s.body.Close()
}

// terminate records a terminal error and sets the appropriate state.
func (s *stream) terminate(err error) {
	if err == io.EOF {
		s.state = omni.StreamStateComplete
		s.err = io.EOF
		return
	}
	s.state = omni.StreamStateError
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		s.err = ctxErr
		return
	}
	s.err = err
}

// readRecord reads lines until a complete SSE record is assembled and
// returns its joined data lines. A record still open when the body ends is
// returned as well.
func (s *stream) readRecord() (string, error) {
	var dataBuf strings.Builder
	hasData := false

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			// Blank line ends the record.
			if hasData {
				return dataBuf.String(), nil
			}
			continue
		}

		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			if hasData {
				dataBuf.WriteByte('\n')
			}
			dataBuf.WriteString(strings.TrimLeft(rest, " \t"))
			hasData = true
		}
		// Comments, event names and unknown fields carry nothing we use.
	}

	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("omniagent: %w", err)
	}

	if hasData {
		return dataBuf.String(), nil
	}
	return "", io.EOF
}

func decodeInto(data string, env *envelope) (omni.Event, error) {
	if strings.TrimSpace(data) == "" {
		return nil, fmt.Errorf("omniagent: empty data: %w", errMissingField)
	}
	if err := json.Unmarshal([]byte(data), env); err != nil {
		return nil, fmt.Errorf("omniagent: decode envelope: %w", err)
	}
	return convertEnvelope(*env)
}
