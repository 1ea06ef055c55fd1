package audit

import (
	"context"

	"github.com/boardwalk-dev/boardwalk/pkg/authz"
)

// MultiLogger fans every event out to multiple sinks. A failing sink does
// not stop the others; the first error is returned.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a fan-out sink over the given loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log implements Logger.
func (m *MultiLogger) Log(ctx context.Context, event *authz.DecisionEvent) error {
	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Log(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close implements Logger. Every sink is closed; the first error wins.
func (m *MultiLogger) Close() error {
	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
