// Package logging provides the structured, category-scoped debug log sink.
// In this tree main's periodic stats line and WebSocket stream errors
// append through it; the VAD, cache, and fan-out stages do not log, and
// main's startup/shutdown messages go through the standard log package.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Sink is a category-scoped structured event logger. The zero value is not
// usable; construct one with New.
type Sink struct {
	logger zerolog.Logger
}

// New builds a Sink that writes newline-delimited JSON events to w. Pass
// os.Stdout for the common case; tests typically pass an io.Discard or a
// bytes.Buffer to assert on emitted fields.
func New(w io.Writer) *Sink {
	logger := zerolog.New(w).With().Timestamp().Logger()
	return &Sink{logger: logger}
}

// Default builds a Sink writing to stdout at info level.
func Default() *Sink {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return New(os.Stdout)
}

// Event is a single key/value debug event at the given category.
type Event struct {
	Category string
	Fields   map[string]any
}

// Emit appends one structured event. It never returns an error: a logging
// failure must not interrupt the pipeline it is observing.
func (s *Sink) Emit(category string, fields map[string]any) {
	if s == nil {
		return
	}
	ev := s.logger.Info().Str("category", category)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(category)
}

// Warn appends a warning-level event, same shape as Emit.
func (s *Sink) Warn(category string, fields map[string]any) {
	if s == nil {
		return
	}
	ev := s.logger.Warn().Str("category", category)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(category)
}

// Error appends an error-level event carrying the failing err.
func (s *Sink) Error(category string, err error, fields map[string]any) {
	if s == nil {
		return
	}
	ev := s.logger.Error().Str("category", category).Err(err)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(category)
}
