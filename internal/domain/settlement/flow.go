// Package settlement applies driver-to-platform settlement payments.
package settlement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sidrive/sidrive-api/internal/domain/wallet"
	"github.com/sidrive/sidrive-api/internal/domain/webhook"
	"github.com/sidrive/sidrive-api/internal/pkg/events"
	"github.com/sidrive/sidrive-api/internal/pkg/logger"
)

// Store is the part of the ledger the settlement flow needs.
type Store interface {
	FindByOrderID(ctx context.Context, category wallet.Category, orderID string) (*wallet.Entry, error)
	SettleFromDriver(ctx context.Context, entryID uuid.UUID, driverID string, amount decimal.Decimal, orderID string) (wallet.Result, error)
	FailPending(ctx context.Context, entryID uuid.UUID) (bool, error)
}

type Flow struct {
	store Store
}

func NewFlow(store Store) *Flow {
	return &Flow{store: store}
}

func (f *Flow) Handle(ctx context.Context, evt webhook.Event) (webhook.Outcome, error) {
	if evt.IsFailure() {
		return f.fail(ctx, evt)
	}
	if !evt.IsSuccess() {
		return webhook.NotFinal("Settlement not final"), nil
	}

	log := logger.FromContext(ctx)

	entry, err := f.store.FindByOrderID(ctx, wallet.CategorySettlementPending, evt.OrderID)
	if errors.Is(err, wallet.ErrEntryNotFound) {
		return webhook.NotFound("Transaction not found"), nil
	}
	if err != nil {
		return webhook.Outcome{}, err
	}
	if entry.Status == wallet.StatusSuccess {
		return webhook.AlreadyProcessed(), nil
	}

	driverID := entry.Metadata["driver_id"]
	if driverID == "" {
		log.Warn().Str("order_id", evt.OrderID).Str("entry_id", entry.ID.String()).Msg("Settlement entry has no driver_id")
	}

	res, err := f.store.SettleFromDriver(ctx, entry.ID, driverID, evt.Amount, evt.OrderID)
	if errors.Is(err, wallet.ErrAlreadySettled) {
		return webhook.AlreadyProcessed(), nil
	}
	if err != nil {
		return webhook.LedgerFailed("Failed to credit platform wallet", err), nil
	}

	log.Info().
		Str("order_id", evt.OrderID).
		Str("driver_id", driverID).
		Str("amount", evt.Amount.String()).
		Msg("Settlement credited to platform wallet")

	out := webhook.Applied("Settlement processed").WithCredit(evt.Amount, &res.BalanceAfter)
	out.NewStatus = string(wallet.StatusSuccess)
	out.EventType = events.TypeSettlementCredited
	out.AccountID = driverID
	return out, nil
}

func (f *Flow) fail(ctx context.Context, evt webhook.Event) (webhook.Outcome, error) {
	entry, err := f.store.FindByOrderID(ctx, wallet.CategorySettlementPending, evt.OrderID)
	if errors.Is(err, wallet.ErrEntryNotFound) {
		return webhook.NotFound("Transaction not found"), nil
	}
	if err != nil {
		return webhook.Outcome{}, err
	}

	changed, err := f.store.FailPending(ctx, entry.ID)
	if err != nil {
		return webhook.Outcome{}, err
	}
	if !changed {
		return webhook.AlreadyProcessed(), nil
	}

	out := webhook.PaymentFailed(string(wallet.StatusFailed))
	out.EventType = events.TypePaymentFailed
	out.AccountID = entry.Metadata["driver_id"]
	return out, nil
}
