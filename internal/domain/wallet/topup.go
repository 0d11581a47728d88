package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sidrive/sidrive-api/internal/domain/webhook"
	"github.com/sidrive/sidrive-api/internal/pkg/events"
	"github.com/sidrive/sidrive-api/internal/pkg/logger"
)

type topupStore interface {
	FindByOrderID(ctx context.Context, category Category, orderID string) (*Entry, error)
	CompleteTopup(ctx context.Context, entryID uuid.UUID, amount decimal.Decimal) (Result, error)
	FailPending(ctx context.Context, entryID uuid.UUID) (bool, error)
}

// TopupFlow settles pending wallet top-ups from gateway notifications.
type TopupFlow struct {
	store topupStore
}

func NewTopupFlow(store topupStore) *TopupFlow {
	return &TopupFlow{store: store}
}

func (f *TopupFlow) Handle(ctx context.Context, evt webhook.Event) (webhook.Outcome, error) {
	switch {
	case evt.IsSuccess():
		return f.credit(ctx, evt)
	case evt.IsFailure():
		return f.fail(ctx, evt)
	default:
		return webhook.NotFinal("Topup not final"), nil
	}
}

func (f *TopupFlow) credit(ctx context.Context, evt webhook.Event) (webhook.Outcome, error) {
	log := logger.FromContext(ctx)

	entry, err := f.store.FindByOrderID(ctx, CategoryTopup, evt.OrderID)
	if errors.Is(err, ErrEntryNotFound) {
		return webhook.NotFound("Transaction not found"), nil
	}
	if err != nil {
		return webhook.Outcome{}, err
	}
	if entry.Status == StatusSuccess {
		return webhook.AlreadyProcessed(), nil
	}

	if !entry.Amount.Equal(evt.Amount) {
		log.Warn().
			Str("order_id", evt.OrderID).
			Str("requested", entry.Amount.String()).
			Str("gross_amount", evt.Amount.String()).
			Msg("Top-up amount differs from checkout, crediting gateway amount")
	}

	res, err := f.store.CompleteTopup(ctx, entry.ID, evt.Amount)
	if errors.Is(err, ErrAlreadySettled) {
		return webhook.AlreadyProcessed(), nil
	}
	if err != nil {
		return webhook.LedgerFailed("Failed to credit wallet", err), nil
	}

	log.Info().
		Str("order_id", evt.OrderID).
		Str("user_id", entry.AccountID).
		Str("balance_after", res.BalanceAfter.String()).
		Msg("Top-up credited")

	out := webhook.Applied("Topup processed").WithCredit(evt.Amount, &res.BalanceAfter)
	out.NewStatus = string(StatusSuccess)
	out.EventType = events.TypeTopupCredited
	out.AccountID = entry.AccountID
	return out, nil
}

func (f *TopupFlow) fail(ctx context.Context, evt webhook.Event) (webhook.Outcome, error) {
	entry, err := f.store.FindByOrderID(ctx, CategoryTopup, evt.OrderID)
	if errors.Is(err, ErrEntryNotFound) {
		return webhook.NotFound("Transaction not found"), nil
	}
	if err != nil {
		return webhook.Outcome{}, err
	}
	if entry.Status != StatusPending {
		return webhook.AlreadyProcessed(), nil
	}

	changed, err := f.store.FailPending(ctx, entry.ID)
	if err != nil {
		return webhook.Outcome{}, err
	}
	if !changed {
		return webhook.AlreadyProcessed(), nil
	}

	out := webhook.PaymentFailed(string(StatusFailed))
	out.EventType = events.TypePaymentFailed
	out.AccountID = entry.AccountID
	return out, nil
}
