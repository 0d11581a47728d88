package wallet

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountKind selects the table that holds a balance.
type AccountKind string

const (
	AccountUser     AccountKind = "user"
	AccountDriver   AccountKind = "driver"
	AccountPlatform AccountKind = "platform"
)

// Direction of a ledger entry.
type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

type Category string

const (
	CategoryOrderPayment      Category = "order_payment"
	CategoryTopup             Category = "topup"
	CategorySettlementPending Category = "settlement_pending"
	CategorySettlement        Category = "settlement"
	CategoryPayout            Category = "payout"
	CategoryPayoutReversal    Category = "payout_reversal"
)

type EntryStatus string

const (
	StatusPending EntryStatus = "pending"
	StatusSuccess EntryStatus = "success"
	StatusFailed  EntryStatus = "failed"
)

// Account identifies one balance holder.
type Account struct {
	Kind AccountKind
	ID   string
}

func UserAccount(id uuid.UUID) Account { return Account{Kind: AccountUser, ID: id.String()} }
func DriverAccount(id uuid.UUID) Account { return Account{Kind: AccountDriver, ID: id.String()} }
func PlatformAccount(id string) Account { return Account{Kind: AccountPlatform, ID: id} }
func (a Account) String() string { return string(a.Kind) + ":" + a.ID }
func (a Account) valid() bool { return a.ID != "" && a.table() != "" }
func (a Account) isPlatform() bool { return a.Kind == AccountPlatform }

func (a Account) table() string {
	switch a.Kind {
	case AccountUser:
		return "users"
	case AccountDriver:
		return "drivers"
	case AccountPlatform:
		return "platform_wallets"
	}
	return ""
}

func (a Account) balanceColumn() string {
	if a.Kind == AccountUser {
		return "wallet_balance"
	}
	return "balance"
}

// Metadata is the jsonb context stored with an entry. order_id links an
// entry to its gateway transaction.
type Metadata map[string]string

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("wallet: unsupported metadata type")
	}
	out := Metadata{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// Entry is one row of the ledger. Balance snapshots are empty while the
// entry is pending.
type Entry struct {
	ID            uuid.UUID           `db:"id" json:"id"`
	AccountKind   AccountKind         `db:"account_kind" json:"account_kind"`
	AccountID     string              `db:"account_id" json:"account_id"`
	Type          Direction           `db:"type" json:"type"`
	Category      Category            `db:"category" json:"category"`
	Amount        decimal.Decimal     `db:"amount" json:"amount"`
	BalanceBefore decimal.NullDecimal `db:"balance_before" json:"balance_before"`
	BalanceAfter  decimal.NullDecimal `db:"balance_after" json:"balance_after"`
	Description   string              `db:"description" json:"description"`
	Metadata      Metadata            `db:"metadata" json:"metadata"`
	ReferenceID   *string             `db:"reference_id" json:"reference_id,omitempty"`
	Status        EntryStatus         `db:"status" json:"status"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time           `db:"updated_at" json:"updated_at"`
}

func (e *Entry) Account() Account {
	return Account{Kind: e.AccountKind, ID: e.AccountID}
}

func (e *Entry) OrderID() string {
	return e.Metadata["order_id"]
}

// Mutation is a single balance change. ReferenceID makes it idempotent per
// account and category.
type Mutation struct {
	Account       Account
	Amount        decimal.Decimal
	Direction     Direction
	Category      Category
	ReferenceID   string
	Description   string
	Metadata      Metadata
	AllowNegative bool
}

// Result reports the entry written by a mutation. Duplicate is set when the
// reference had already been applied with the same amount.
type Result struct {
	EntryID       uuid.UUID
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Duplicate     bool
}
