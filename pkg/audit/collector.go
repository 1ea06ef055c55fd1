package audit

import (
	"context"

	"github.com/boardwalk-dev/boardwalk/pkg/authz"
	"github.com/boardwalk-dev/boardwalk/pkg/observability"
)

// Collector drains the engine's decision-event channel into an audit sink.
// It is the consuming half of the fire-and-forget contract: the engine never
// waits for it, and a sink failure is logged and counted, never propagated
// back to a decision.
type Collector struct {
	events  <-chan authz.DecisionEvent
	sink    Logger
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewCollector creates a collector over the engine's event stream.
func NewCollector(events <-chan authz.DecisionEvent, sink Logger, logger *observability.Logger, metrics *observability.Metrics) *Collector {
	if sink == nil {
		sink = NopLogger{}
	}
	return &Collector{
		events:  events,
		sink:    sink,
		logger:  logger,
		metrics: metrics,
	}
}

// Run consumes events until the context is cancelled or the channel closes.
func (c *Collector) Run(ctx context.Context) error {
	defer c.sink.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-c.events:
			if !ok {
				return nil
			}
			if err := c.sink.Log(ctx, &event); err != nil {
				c.metrics.AuditEmitFailuresTotal.Inc()
				c.logger.WithError(err).WithField("event_id", event.ID).
					Warn("audit sink rejected decision event")
			}
		}
	}
}
