package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/sidrive/sidrive-api/internal/pkg/database"
	"github.com/sidrive/sidrive-api/internal/pkg/metrics"
)

const (
	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"
)

const entryColumns = `id, account_kind, account_id, type, category, amount, balance_before, balance_after,
	description, metadata, reference_id, status, created_at, updated_at`

// Ledger is the only writer of balances. Every mutation locks the account
// row, writes the new balance and appends an entry in one transaction.
type Ledger struct {
	db       *sqlx.DB
	platform Account
}

func NewLedger(db *sqlx.DB, platformWalletID string) *Ledger {
	return &Ledger{db: db, platform: PlatformAccount(platformWalletID)}
}

// Platform returns the aggregate platform wallet.
func (l *Ledger) Platform() Account {
	return l.platform
}

// Apply runs m in its own transaction. A reference that was already applied
// with the same amount returns a Duplicate result and changes nothing.
func (l *Ledger) Apply(ctx context.Context, m Mutation) (Result, error) {
	var res Result
	err := database.InTx(ctx, l.db, func(tx *sqlx.Tx) error {
		var err error
		res, err = l.ApplyTx(ctx, tx, m)
		return err
	})
	if errors.Is(err, ErrDuplicateReference) {
		metrics.LedgerMutation(string(m.Category), "duplicate")
		return Result{Duplicate: true}, nil
	}
	return res, err
}

// ApplyTx applies m inside the caller's transaction.
func (l *Ledger) ApplyTx(ctx context.Context, tx *sqlx.Tx, m Mutation) (Result, error) {
	res, err := l.applyTx(ctx, tx, m)
	switch {
	case err != nil:
		metrics.LedgerMutation(string(m.Category), "error")
	case res.Duplicate:
		metrics.LedgerMutation(string(m.Category), "duplicate")
	default:
		metrics.LedgerMutation(string(m.Category), "applied")
	}
	return res, err
}

func (l *Ledger) applyTx(ctx context.Context, tx *sqlx.Tx, m Mutation) (Result, error) {
	if !m.Amount.IsPositive() {
		return Result{}, ErrInvalidAmount
	}
	if m.Direction != Credit && m.Direction != Debit {
		return Result{}, fmt.Errorf("%w: direction %q", ErrInvalidAmount, m.Direction)
	}

	balance, err := l.lockBalance(ctx, tx, m.Account)
	if err != nil {
		return Result{}, err
	}

	existing, err := l.getEntryByRef(ctx, tx, m.Account, m.Category, m.ReferenceID)
	if err != nil {
		return Result{}, err
	}
	if existing != nil {
		if !existing.Amount.Equal(m.Amount) || existing.Type != m.Direction {
			return Result{}, ErrReferenceConflict
		}
		return Result{
			EntryID:       existing.ID,
			BalanceBefore: existing.BalanceBefore.Decimal,
			BalanceAfter:  existing.BalanceAfter.Decimal,
			Duplicate:     true,
		}, nil
	}

	next := balance.Add(m.Amount)
	if m.Direction == Debit {
		next = balance.Sub(m.Amount)
		if next.IsNegative() && !m.AllowNegative {
			return Result{}, ErrInsufficientFunds
		}
	}

	if err := l.updateBalance(ctx, tx, m.Account, next); err != nil {
		return Result{}, err
	}

	entryID := uuid.New()
	if err := l.insertEntry(ctx, tx, entryID, m, balance, next); err != nil {
		return Result{}, err
	}

	return Result{EntryID: entryID, BalanceBefore: balance, BalanceAfter: next}, nil
}

// Balance reads the current balance of acct.
func (l *Ledger) Balance(ctx context.Context, acct Account) (decimal.Decimal, error) {
	if err := checkAccount(acct); err != nil {
		return decimal.Zero, err
	}
	var balance decimal.Decimal
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, acct.balanceColumn(), acct.table())
	err := l.db.GetContext(ctx, &balance, query, acct.ID)
	if errors.Is(err, sql.ErrNoRows) {
		if acct.isPlatform() {
			return decimal.Zero, nil
		}
		return decimal.Zero, ErrAccountNotFound
	}
	return balance, err
}

// PendingEntry describes a ledger entry opened at checkout and settled later
// by a gateway notification.
type PendingEntry struct {
	Account     Account
	Category    Category
	Amount      decimal.Decimal
	OrderID     string
	Description string
	Metadata    Metadata
}

// CreatePending records a pending entry keyed by its gateway order id. No
// balance changes until the entry is completed.
func (l *Ledger) CreatePending(ctx context.Context, p PendingEntry) (*Entry, error) {
	if !p.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if err := checkAccount(p.Account); err != nil {
		return nil, err
	}

	meta := Metadata{}
	for k, v := range p.Metadata {
		meta[k] = v
	}
	meta["order_id"] = p.OrderID

	entry := &Entry{}
	err := l.db.GetContext(ctx, entry, `
		INSERT INTO wallet_transactions
			(id, account_kind, account_id, type, category, amount, description, metadata, reference_id, status)
		VALUES ($1, $2, $3, 'credit', $4, $5, $6, $7, $8, 'pending')
		RETURNING `+entryColumns,
		uuid.New(), p.Account.Kind, p.Account.ID, p.Category, p.Amount, p.Description, meta, p.OrderID)
	if err != nil {
		if isPQCode(err, pqUniqueViolation) {
			return nil, ErrDuplicateReference
		}
		return nil, err
	}
	return entry, nil
}

// FindByOrderID returns the entry of category linked to a gateway order id.
func (l *Ledger) FindByOrderID(ctx context.Context, category Category, orderID string) (*Entry, error) {
	entry := &Entry{}
	err := l.db.GetContext(ctx, entry, `
		SELECT `+entryColumns+`
		FROM wallet_transactions
		WHERE metadata ->> 'order_id' = $1 AND category = $2
		ORDER BY created_at
		LIMIT 1
	`, orderID, category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListStalePending returns pending entries of the given categories created
// before olderThan, oldest first.
func (l *Ledger) ListStalePending(ctx context.Context, categories []Category, olderThan time.Time, limit int) ([]Entry, error) {
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, string(c))
	}

	var entries []Entry
	err := l.db.SelectContext(ctx, &entries, `
		SELECT `+entryColumns+`
		FROM wallet_transactions
		WHERE status = 'pending' AND category = ANY($1) AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`, pq.Array(names), olderThan, limit)
	return entries, err
}

// CompleteTopup flips a pending top-up entry to success and credits its
// owner by amount in the same transaction. The entry amount and balance
// snapshots are rewritten to the credited values.
func (l *Ledger) CompleteTopup(ctx context.Context, entryID uuid.UUID, amount decimal.Decimal) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, ErrInvalidAmount
	}

	var res Result
	err := database.InTx(ctx, l.db, func(tx *sqlx.Tx) error {
		acct, err := l.claimPending(ctx, tx, entryID)
		if err != nil {
			return err
		}

		balance, err := l.lockBalance(ctx, tx, acct)
		if err != nil {
			return err
		}
		next := balance.Add(amount)
		if err := l.updateBalance(ctx, tx, acct, next); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE wallet_transactions
			SET amount = $1, balance_before = $2, balance_after = $3, updated_at = now()
			WHERE id = $4
		`, amount, balance, next, entryID); err != nil {
			return err
		}

		res = Result{EntryID: entryID, BalanceBefore: balance, BalanceAfter: next}
		return nil
	})
	if err != nil {
		metrics.LedgerMutation(string(CategoryTopup), "error")
		return Result{}, err
	}
	metrics.LedgerMutation(string(CategoryTopup), "applied")
	return res, nil
}

// SettleFromDriver marks a pending settlement entry as success and credits
// the platform wallet with the driver's payment. The platform credit is
// keyed by the gateway order id, so a repeated delivery cannot credit twice
// even if the entry status was changed by hand. When the credit already
// exists the entry is still closed and ErrAlreadySettled is returned.
func (l *Ledger) SettleFromDriver(ctx context.Context, entryID uuid.UUID, driverID string, amount decimal.Decimal, orderID string) (Result, error) {
	var res Result
	err := database.InTx(ctx, l.db, func(tx *sqlx.Tx) error {
		if _, err := l.claimPending(ctx, tx, entryID); err != nil {
			return err
		}

		var err error
		res, err = l.ApplyTx(ctx, tx, Mutation{
			Account:     l.platform,
			Amount:      amount,
			Direction:   Credit,
			Category:    CategorySettlement,
			ReferenceID: orderID,
			Description: "Settlement from driver",
			Metadata:    Metadata{"order_id": orderID, "driver_id": driverID},
		})
		return err
	})
	if err != nil {
		return Result{}, err
	}
	if res.Duplicate {
		return res, ErrAlreadySettled
	}
	return res, nil
}

// FailPending marks a pending entry as failed. It reports false when the
// entry was no longer pending.
func (l *Ledger) FailPending(ctx context.Context, entryID uuid.UUID) (bool, error) {
	result, err := l.db.ExecContext(ctx, `
		UPDATE wallet_transactions
		SET status = 'failed', updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, entryID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// claimPending is the compare-and-swap that makes entry completion happen
// at most once.
func (l *Ledger) claimPending(ctx context.Context, tx *sqlx.Tx, entryID uuid.UUID) (Account, error) {
	var row struct {
		Kind AccountKind `db:"account_kind"`
		ID   string      `db:"account_id"`
	}
	err := tx.GetContext(ctx, &row, `
		UPDATE wallet_transactions
		SET status = 'success', updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING account_kind, account_id
	`, entryID)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM wallet_transactions WHERE id = $1)`, entryID); err != nil {
			return Account{}, err
		}
		if exists {
			return Account{}, ErrAlreadySettled
		}
		return Account{}, ErrEntryNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return Account{Kind: row.Kind, ID: row.ID}, nil
}

func (l *Ledger) lockBalance(ctx context.Context, tx *sqlx.Tx, acct Account) (decimal.Decimal, error) {
	if err := checkAccount(acct); err != nil {
		return decimal.Zero, err
	}

	if acct.isPlatform() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO platform_wallets (id, balance)
			VALUES ($1, 0)
			ON CONFLICT (id) DO NOTHING
		`, acct.ID); err != nil {
			return decimal.Zero, err
		}
	}

	var balance decimal.Decimal
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 FOR UPDATE`, acct.balanceColumn(), acct.table())
	err := tx.GetContext(ctx, &balance, query, acct.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrAccountNotFound
	}
	return balance, err
}

func (l *Ledger) getEntryByRef(ctx context.Context, tx *sqlx.Tx, acct Account, category Category, referenceID string) (*Entry, error) {
	if referenceID == "" {
		return nil, nil
	}

	entry := &Entry{}
	err := tx.GetContext(ctx, entry, `
		SELECT `+entryColumns+`
		FROM wallet_transactions
		WHERE account_kind = $1 AND account_id = $2 AND category = $3 AND reference_id = $4
		LIMIT 1
	`, acct.Kind, acct.ID, category, referenceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (l *Ledger) updateBalance(ctx context.Context, tx *sqlx.Tx, acct Account, balance decimal.Decimal) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $1, updated_at = now() WHERE id = $2`, acct.table(), acct.balanceColumn())
	_, err := tx.ExecContext(ctx, query, balance, acct.ID)
	if isPQCode(err, pqCheckViolation) {
		return ErrInsufficientFunds
	}
	return err
}

func (l *Ledger) insertEntry(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, m Mutation, before, after decimal.Decimal) error {
	var ref interface{}
	if m.ReferenceID != "" {
		ref = m.ReferenceID
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions
			(id, account_kind, account_id, type, category, amount, balance_before, balance_after,
			 description, metadata, reference_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'success')
	`, id, m.Account.Kind, m.Account.ID, m.Direction, m.Category, m.Amount, before, after,
		m.Description, m.Metadata, ref)
	if isPQCode(err, pqUniqueViolation) {
		return ErrDuplicateReference
	}
	return err
}

func checkAccount(acct Account) error {
	if !acct.valid() {
		return fmt.Errorf("%w: %s", ErrInvalidAccount, acct)
	}
	if !acct.isPlatform() {
		if _, err := uuid.Parse(acct.ID); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidAccount, acct)
		}
	}
	return nil
}

func isPQCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}
