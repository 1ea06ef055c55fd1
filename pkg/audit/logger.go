package audit

import (
	"context"

	"github.com/boardwalk-dev/boardwalk/pkg/authz"
	"github.com/boardwalk-dev/boardwalk/pkg/observability"
)

// Logger is the interface for audit sinks consuming authorization decision
// events. Implementations must not assume delivery guarantees stronger than
// what the engine provides: emission-attempt, not delivery.
type Logger interface {
	// Log records a decision event.
	Log(ctx context.Context, event *authz.DecisionEvent) error

	// Close flushes and releases the sink.
	Close() error
}

// NopLogger discards every event. Used when no audit sink is configured.
type NopLogger struct{}

// Log implements Logger.
func (NopLogger) Log(context.Context, *authz.DecisionEvent) error { return nil }

// Close implements Logger.
func (NopLogger) Close() error { return nil }

// SlogLogger writes decision events to the structured application log.
type SlogLogger struct {
	logger *observability.Logger
}

// NewSlogLogger creates an audit sink over the structured logger.
func NewSlogLogger(logger *observability.Logger) *SlogLogger {
	return &SlogLogger{logger: logger}
}

// Log implements Logger.
func (l *SlogLogger) Log(_ context.Context, event *authz.DecisionEvent) error {
	entry := l.logger.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"user_id":    event.UserID,
		"tenant_id":  event.TenantID,
		"permission": event.Permission,
		"allowed":    event.Allowed,
		"reason":     event.Reason,
	})
	if event.ResourceRef != "" {
		entry = entry.WithField("resource_ref", event.ResourceRef)
	}
	if event.MatchedRule != "" {
		entry = entry.WithField("matched_rule", event.MatchedRule)
	}
	if event.Allowed {
		entry.Info("authorization decision")
	} else {
		entry.Warn("authorization denied")
	}
	return nil
}

// Close implements Logger.
func (l *SlogLogger) Close() error { return nil }
