package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/sidrive/sidrive-api/internal/domain/wallet"
	"github.com/sidrive/sidrive-api/internal/domain/webhook"
	"github.com/sidrive/sidrive-api/internal/pkg/events"
	"github.com/sidrive/sidrive-api/internal/pkg/logger"
)

type paymentStore interface {
	GetByID(ctx context.Context, id string) (*Order, error)
	ConfirmPayment(ctx context.Context, id string, next Status, searchStartedAt *time.Time, within func(ctx context.Context, tx *sqlx.Tx) error) (bool, error)
	MarkPaymentFailed(ctx context.Context, id string) (bool, error)
}

// Ledger credits the platform wallet inside the order transaction.
type Ledger interface {
	ApplyTx(ctx context.Context, tx *sqlx.Tx, m wallet.Mutation) (wallet.Result, error)
	Platform() wallet.Account
}

// PaymentFlow applies gateway notifications to order payments.
type PaymentFlow struct {
	orders paymentStore
	ledger Ledger
	now    func() time.Time
}

func NewPaymentFlow(orders paymentStore, ledger Ledger) *PaymentFlow {
	return &PaymentFlow{orders: orders, ledger: ledger, now: time.Now}
}

func (f *PaymentFlow) Handle(ctx context.Context, evt webhook.Event) (webhook.Outcome, error) {
	o, err := f.orders.GetByID(ctx, evt.OrderID)
	if errors.Is(err, ErrOrderNotFound) {
		return webhook.NotFound("Order not found"), nil
	}
	if err != nil {
		return webhook.Outcome{}, err
	}
	if o.IsPaid() {
		return webhook.AlreadyProcessed(), nil
	}

	switch {
	case evt.IsSuccess():
		return f.confirm(ctx, o, evt)
	case evt.IsPending():
		return webhook.Pending(), nil
	case evt.IsFailure():
		return f.fail(ctx, o)
	default:
		return webhook.Unrecognized(), nil
	}
}

func (f *PaymentFlow) confirm(ctx context.Context, o *Order, evt webhook.Event) (webhook.Outcome, error) {
	log := logger.FromContext(ctx)

	if !o.TotalAmount.Equal(evt.Amount) {
		log.Warn().
			Str("order_id", o.ID).
			Str("total_amount", o.TotalAmount.String()).
			Str("gross_amount", evt.Amount.String()).
			Msg("Gross amount differs from order total")
	}

	next := o.StatusAfterPayment()
	var searchStartedAt *time.Time
	if o.StartsSearch() {
		now := f.now().UTC()
		searchStartedAt = &now
	}

	var (
		credit    wallet.Result
		ledgerErr error
	)
	won, err := f.orders.ConfirmPayment(ctx, o.ID, next, searchStartedAt, func(ctx context.Context, tx *sqlx.Tx) error {
		credit, ledgerErr = f.ledger.ApplyTx(ctx, tx, wallet.Mutation{
			Account:     f.ledger.Platform(),
			Amount:      evt.Amount,
			Direction:   wallet.Credit,
			Category:    wallet.CategoryOrderPayment,
			ReferenceID: o.ID,
			Description: "Payment for " + string(o.Kind) + " order",
			Metadata: wallet.Metadata{
				"order_id":    o.ID,
				"customer_id": o.UserID.String(),
			},
		})
		return ledgerErr
	})
	if ledgerErr != nil {
		log.Error().Err(ledgerErr).Str("order_id", o.ID).Msg("Credit platform wallet failed")
		return webhook.LedgerFailed("Failed to credit admin wallet", ledgerErr), nil
	}
	if err != nil {
		return webhook.Outcome{}, err
	}
	if !won {
		return webhook.AlreadyProcessed(), nil
	}

	log.Info().
		Str("order_id", o.ID).
		Str("kind", string(o.Kind)).
		Str("new_status", string(next)).
		Str("credited", evt.Amount.String()).
		Msg("Payment confirmed")

	out := webhook.Applied("Payment confirmed").WithCredit(evt.Amount, balanceAfter(credit))
	out.NewStatus = string(next)
	out.EventType = events.TypePaymentConfirmed
	out.AccountID = o.UserID.String()
	return out, nil
}

func (f *PaymentFlow) fail(ctx context.Context, o *Order) (webhook.Outcome, error) {
	changed, err := f.orders.MarkPaymentFailed(ctx, o.ID)
	if err != nil {
		return webhook.Outcome{}, err
	}
	if !changed {
		return webhook.AlreadyProcessed(), nil
	}

	logger.FromContext(ctx).Info().Str("order_id", o.ID).Msg("Payment failed, order cancelled")

	out := webhook.PaymentFailed(string(StatusCancelled))
	out.EventType = events.TypePaymentFailed
	out.AccountID = o.UserID.String()
	return out, nil
}

func balanceAfter(res wallet.Result) *decimal.Decimal {
	if res.Duplicate && res.EntryID == uuid.Nil {
		return nil
	}
	return &res.BalanceAfter
}
