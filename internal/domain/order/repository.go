package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sidrive/sidrive-api/internal/pkg/database"
)

const orderColumns = `id, user_id, kind, total_amount, payment_method, payment_status, order_status,
	payment_token, gateway_response, search_started_at, paid_at, created_at, updated_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Order, error) {
	o := &Order{}
	err := r.db.GetContext(ctx, o, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ConfirmPayment marks the order paid unless it already is. The update is a
// compare-and-swap on payment_status; within runs in the same transaction
// only when the swap won, so a failing within leaves the order untouched.
// It reports false when another delivery already confirmed the payment.
func (r *Repository) ConfirmPayment(ctx context.Context, id string, next Status, searchStartedAt *time.Time, within func(ctx context.Context, tx *sqlx.Tx) error) (bool, error) {
	won := false
	err := database.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET payment_status = 'paid',
				order_status = $2,
				search_started_at = COALESCE($3, search_started_at),
				paid_at = now(),
				updated_at = now()
			WHERE id = $1 AND payment_status <> 'paid'
		`, id, next, searchStartedAt)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if within != nil {
			if err := within(ctx, tx); err != nil {
				return err
			}
		}
		won = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

// MarkPaymentFailed moves an unpaid order to failed and cancelled. It
// reports false when the order was no longer unpaid.
func (r *Repository) MarkPaymentFailed(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = 'failed', order_status = 'cancelled', updated_at = now()
		WHERE id = $1 AND payment_status = 'unpaid'
	`, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetPaymentToken stores the Snap token issued for an unpaid order.
func (r *Repository) SetPaymentToken(ctx context.Context, id, token string, gatewayResponse []byte) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_token = $2, gateway_response = $3, updated_at = now()
		WHERE id = $1 AND payment_status = 'unpaid'
	`, id, token, string(gatewayResponse))
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotPayable
	}
	return nil
}

// ListStaleUnpaid returns unpaid orders that received a payment token before
// olderThan, oldest first.
func (r *Repository) ListStaleUnpaid(ctx context.Context, olderThan time.Time, limit int) ([]Order, error) {
	var orders []Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE payment_status = 'unpaid' AND payment_token IS NOT NULL AND updated_at < $1
		ORDER BY updated_at
		LIMIT $2
	`, olderThan, limit)
	return orders, err
}
