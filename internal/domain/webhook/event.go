package webhook

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sidrive/sidrive-api/internal/pkg/midtrans"
)

// Source tells where a verified event came from.
type Source string

const (
	SourceWebhook   Source = "webhook"
	SourceReconcile Source = "reconcile"
)

// Event is a notification that has passed verification. Amount is the
// canonical gross amount selected by the signature check.
type Event struct {
	OrderID           string
	TransactionStatus string
	FraudStatus       string
	StatusCode        string
	CanonicalAmount   string
	Amount            decimal.Decimal
	Source            Source
}

// IsSuccess reports settlement, or capture accepted by fraud screening.
func (e Event) IsSuccess() bool {
	return midtrans.IsSuccess(e.TransactionStatus, e.FraudStatus)
}

// IsFailure reports deny, cancel, expire or failure.
func (e Event) IsFailure() bool {
	return midtrans.IsFailure(e.TransactionStatus)
}

// IsPending reports a transaction still awaiting payment.
func (e Event) IsPending() bool {
	return e.TransactionStatus == midtrans.StatusPending
}

// FlowHandler applies a verified event to the records of one flow.
// Business outcomes are returned as an Outcome; a non-nil error means the
// event could not be applied at all.
type FlowHandler interface {
	Handle(ctx context.Context, evt Event) (Outcome, error)
}

// FlowHandlerFunc adapts a function to FlowHandler.
type FlowHandlerFunc func(ctx context.Context, evt Event) (Outcome, error)

func (f FlowHandlerFunc) Handle(ctx context.Context, evt Event) (Outcome, error) {
	return f(ctx, evt)
}
