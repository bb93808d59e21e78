// Package logging adapts zerolog to the ports.Logger interface used by the
// reconciler, the CLI and the MCP server.
package logging

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/felixgeelhaar/chocostate/internal/ports"
	"github.com/rs/zerolog"
)

// Options configures a ZerologLogger.
type Options struct {
	// Level is the minimum level written.
	Level ports.Level
	// JSON selects newline-delimited JSON output instead of the console writer.
	JSON bool
	// Writer defaults to os.Stderr.
	Writer io.Writer
	// NoColor disables ANSI colours in console output.
	NoColor bool
}

// ZerologLogger adapts zerolog to ports.Logger. Loggers derived with With
// share the level of their parent.
type ZerologLogger struct {
	base  zerolog.Logger
	state *levelState
}

type levelState struct {
	mu    sync.RWMutex
	level ports.Level
}

// NewZerologLogger builds a logger writing to opts.Writer.
func NewZerologLogger(opts Options) *ZerologLogger {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	var output io.Writer = writer
	if !opts.JSON {
		console := zerolog.NewConsoleWriter()
		console.Out = writer
		console.TimeFormat = time.RFC3339
		console.NoColor = opts.NoColor
		output = console
	}

	return &ZerologLogger{
		base:  zerolog.New(output).With().Timestamp().Logger(),
		state: &levelState{level: opts.Level},
	}
}

// NewNopLogger returns a logger that discards everything. The level is
// still tracked so callers can inspect it.
func NewNopLogger() *ZerologLogger {
	return &ZerologLogger{
		base:  zerolog.Nop(),
		state: &levelState{level: ports.LevelInfo},
	}
}

// Debug logs a debug message.
func (l *ZerologLogger) Debug(_ context.Context, msg string, fields ...ports.Field) {
	l.write(ports.LevelDebug, msg, fields)
}

// Info logs an informational message.
func (l *ZerologLogger) Info(_ context.Context, msg string, fields ...ports.Field) {
	l.write(ports.LevelInfo, msg, fields)
}

// Warn logs a warning.
func (l *ZerologLogger) Warn(_ context.Context, msg string, fields ...ports.Field) {
	l.write(ports.LevelWarn, msg, fields)
}

// Error logs an error.
func (l *ZerologLogger) Error(_ context.Context, msg string, fields ...ports.Field) {
	l.write(ports.LevelError, msg, fields)
}

// With returns a logger that always writes the supplied fields.
func (l *ZerologLogger) With(fields ...ports.Field) ports.Logger {
	builder := l.base.With()
	for _, f := range fields {
		if f.Value == nil {
			continue
		}
		builder = builder.Interface(f.Key, f.Value)
	}
	return &ZerologLogger{base: builder.Logger(), state: l.state}
}

// Level returns the current minimum level.
func (l *ZerologLogger) Level() ports.Level {
	l.state.mu.RLock()
	defer l.state.mu.RUnlock()
	return l.state.level
}

// SetLevel changes the minimum level for this logger and every logger
// derived from it.
func (l *ZerologLogger) SetLevel(level ports.Level) {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()
	l.state.level = level
}

func (l *ZerologLogger) write(level ports.Level, msg string, fields []ports.Field) {
	if level < l.Level() {
		return
	}

	var event *zerolog.Event
	switch level {
	case ports.LevelDebug:
		event = l.base.Debug()
	case ports.LevelWarn:
		event = l.base.Warn()
	case ports.LevelError:
		event = l.base.Error()
	default:
		event = l.base.Info()
	}

	for _, f := range fields {
		if f.Value == nil {
			continue
		}
		event = event.Interface(f.Key, f.Value)
	}
	event.Msg(msg)
}

var _ ports.Logger = (*ZerologLogger)(nil)
