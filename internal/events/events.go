package events

import (
	"context"
	"time"
)

// PurchaseEvent is emitted once per completed checkout.
type PurchaseEvent struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"orderId"`
	WorkflowID  string    `json:"workflowId"`
	Title       string    `json:"title"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Provider    string    `json:"provider"`
	Email       string    `json:"email,omitempty"`
	PurchasedAt time.Time `json:"purchasedAt"`
}

// Publisher delivers purchase events to a sink.
type Publisher interface {
	Publish(ctx context.Context, ev PurchaseEvent) error
	Close() error
}
