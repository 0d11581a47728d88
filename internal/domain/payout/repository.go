package payout

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sidrive/sidrive-api/internal/pkg/database"
)

const payoutColumns = `id, admin_id, amount, bank_code, bank_name, account_number, account_holder_name, notes,
	status, reference_no, gateway_response, failure_reason, processed_at, completed_at, created_at, updated_at`

// TxFunc runs inside the transaction that moves a payout between states.
type TxFunc func(ctx context.Context, tx *sqlx.Tx) error

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Payout, error) {
	p := &Payout{}
	err := r.db.GetContext(ctx, p, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPayoutNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// MarkProcessing swaps a pending payout to processing and runs within in
// the same transaction. It reports false when the payout was not pending.
func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID, within TxFunc) (bool, error) {
	return r.transition(ctx, within, `
		UPDATE payouts
		SET status = 'processing', processed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id)
}

// Resolve records the gateway result on a processing payout. within runs in
// the same transaction, after the row is updated.
func (r *Repository) Resolve(ctx context.Context, id uuid.UUID, res Resolution, within TxFunc) (bool, error) {
	var reference, reason, raw *string
	if res.ReferenceNo != "" {
		reference = &res.ReferenceNo
	}
	if res.FailureReason != "" {
		reason = &res.FailureReason
	}
	if len(res.GatewayResponse) > 0 {
		s := string(res.GatewayResponse)
		raw = &s
	}

	return r.transition(ctx, within, `
		UPDATE payouts
		SET status = $2,
			reference_no = COALESCE($3, reference_no),
			failure_reason = $4,
			gateway_response = COALESCE($5::jsonb, gateway_response),
			completed_at = CASE WHEN $2 IN ('completed', 'failed') THEN now() ELSE completed_at END,
			updated_at = now()
		WHERE id = $1 AND status = 'processing'
	`, id, res.Status, reference, reason, raw)
}

func (r *Repository) transition(ctx context.Context, within TxFunc, query string, args ...any) (bool, error) {
	won := false
	err := database.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
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
