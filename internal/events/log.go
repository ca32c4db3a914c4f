package events

import (
	"context"
	"log/slog"
)

// LogPublisher writes events to a structured logger. It is the sink used
// when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher. A nil logger uses slog.Default.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, ev PurchaseEvent) error {
	p.logger.InfoContext(ctx, "purchase completed",
		"event_id", ev.ID,
		"order_id", ev.OrderID,
		"workflow_id", ev.WorkflowID,
		"amount", ev.Amount,
		"currency", ev.Currency,
		"provider", ev.Provider,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
