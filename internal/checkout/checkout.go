package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/kalambet/flowmart/internal/catalog"
	"github.com/kalambet/flowmart/internal/events"
)

// DefaultDelay emulates the time a payment provider takes to confirm.
const DefaultDelay = 2 * time.Second

// ErrInvalidRequest is returned for a checkout request that fails validation.
var ErrInvalidRequest = errors.New("invalid checkout request")

// PaymentProvider names the simulated payment method.
type PaymentProvider string

const (
	ProviderStripe PaymentProvider = "stripe"
	ProviderPayPal PaymentProvider = "paypal"
	ProviderCreem  PaymentProvider = "creem"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Request is a purchase of one workflow. An empty Provider means Stripe.
type Request struct {
	WorkflowID string          `json:"workflowId" validate:"required"`
	Provider   PaymentProvider `json:"provider" validate:"omitempty,oneof=stripe paypal creem"`
	Email      string          `json:"email,omitempty" validate:"omitempty,email"`
}

// Receipt confirms a completed purchase.
type Receipt struct {
	OrderID     string           `json:"orderId"`
	WorkflowID  string           `json:"workflowId"`
	Title       string           `json:"title"`
	Amount      float64          `json:"amount"`
	Currency    catalog.Currency `json:"currency"`
	Provider    PaymentProvider  `json:"provider"`
	Email       string           `json:"email,omitempty"`
	PurchasedAt time.Time        `json:"purchasedAt"`
}

// Catalog looks up the workflow being bought.
type Catalog interface {
	Get(ctx context.Context, id string) (catalog.WorkflowRecord, error)
}

// Service runs simulated checkouts. No money moves and the catalog is
// never modified.
type Service struct {
	catalog   Catalog
	publisher events.Publisher
	delay     time.Duration
	now       func() time.Time
}

// NewService creates a Service. A negative delay disables the simulated
// processing time; zero uses DefaultDelay.
func NewService(cat Catalog, publisher events.Publisher, delay time.Duration) *Service {
	if delay == 0 {
		delay = DefaultDelay
	}
	if delay < 0 {
		delay = 0
	}
	if publisher == nil {
		publisher = events.NewLogPublisher(nil)
	}
	return &Service{catalog: cat, publisher: publisher, delay: delay, now: time.Now}
}

// Purchase validates req, waits for the simulated provider and returns a
// receipt. Event delivery failures are logged and do not fail the purchase.
func (s *Service) Purchase(ctx context.Context, req Request) (Receipt, error) {
	if err := validate.Struct(req); err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Provider == "" {
		req.Provider = ProviderStripe
	}

	w, err := s.catalog.Get(ctx, req.WorkflowID)
	if err != nil {
		return Receipt{}, err
	}

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		case <-time.After(s.delay):
		}
	}

	r := Receipt{
		OrderID:     uuid.NewString(),
		WorkflowID:  w.ID,
		Title:       w.Title,
		Amount:      w.Price,
		Currency:    w.Currency,
		Provider:    req.Provider,
		Email:       req.Email,
		PurchasedAt: s.now().UTC(),
	}

	ev := events.PurchaseEvent{
		ID:          uuid.NewString(),
		OrderID:     r.OrderID,
		WorkflowID:  r.WorkflowID,
		Title:       r.Title,
		Amount:      r.Amount,
		Currency:    string(r.Currency),
		Provider:    string(r.Provider),
		Email:       r.Email,
		PurchasedAt: r.PurchasedAt,
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		slog.Warn("purchase event not delivered", "order_id", r.OrderID, "error", err)
	}
	return r, nil
}
