package eventstore

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Logger is used by the event store to report retries, rollbacks and
// other noteworthy operational details. keyvals are alternating keys and values
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// NoOpLogger discards everything. It is the default logger
type NoOpLogger struct{}

// Debug implements Logger
func (NoOpLogger) Debug(context.Context, string, ...any) {}

// Info implements Logger
func (NoOpLogger) Info(context.Context, string, ...any) {}

// Error implements Logger
func (NoOpLogger) Error(context.Context, string, ...any) {}

// NewStdLogger adapts a standard library logger. Debug messages are
// only written when debug is true
func NewStdLogger(l *log.Logger, debug bool) *StdLogger {
	if l == nil {
		l = log.Default()
	}

	return &StdLogger{logger: l, debug: debug}
}

// StdLogger writes leveled key-value lines to a *log.Logger
type StdLogger struct {
	logger *log.Logger
	debug  bool
}

// Debug implements Logger
func (s *StdLogger) Debug(_ context.Context, msg string, keyvals ...any) {
	if !s.debug {
		return
	}

	s.print("DEBUG", msg, keyvals)
}

// Info implements Logger
func (s *StdLogger) Info(_ context.Context, msg string, keyvals ...any) {
	s.print("INFO", msg, keyvals)
}

// Error implements Logger
func (s *StdLogger) Error(_ context.Context, msg string, keyvals ...any) {
	s.print("ERROR", msg, keyvals)
}

func (s *StdLogger) print(level, msg string, keyvals []any) {
	var b strings.Builder

	b.WriteString(level)
	b.WriteString(" ")
	b.WriteString(msg)

	for i := 0; i < len(keyvals); i += 2 {
		if i+1 < len(keyvals) {
			fmt.Fprintf(&b, " %v=%v", keyvals[i], keyvals[i+1])

			continue
		}

		fmt.Fprintf(&b, " %v=(missing)", keyvals[i])
	}

	s.logger.Print(b.String())
}
