package payout

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// Status is the payout lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Payout is a bank transfer from the platform wallet requested by an admin.
type Payout struct {
	ID                uuid.UUID          `db:"id" json:"id"`
	AdminID           uuid.UUID          `db:"admin_id" json:"admin_id"`
	Amount            decimal.Decimal    `db:"amount" json:"amount"`
	BankCode          string             `db:"bank_code" json:"bank_code"`
	BankName          string             `db:"bank_name" json:"bank_name"`
	AccountNumber     string             `db:"account_number" json:"account_number"`
	AccountHolderName string             `db:"account_holder_name" json:"account_holder_name"`
	Notes             string             `db:"notes" json:"notes"`
	Status            Status             `db:"status" json:"status"`
	ReferenceNo       *string            `db:"reference_no" json:"reference_no,omitempty"`
	GatewayResponse   types.NullJSONText `db:"gateway_response" json:"-"`
	FailureReason     *string            `db:"failure_reason" json:"failure_reason,omitempty"`
	ProcessedAt       *time.Time         `db:"processed_at" json:"processed_at,omitempty"`
	CompletedAt       *time.Time         `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt         time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `db:"updated_at" json:"updated_at"`
}

// MaskedAccount keeps the last four digits of the account number.
func (p *Payout) MaskedAccount() string {
	n := len(p.AccountNumber)
	if n <= 4 {
		return "****"
	}
	return "****" + p.AccountNumber[n-4:]
}

// Resolution is the terminal or in-flight state reported by the gateway.
type Resolution struct {
	Status          Status
	ReferenceNo     string
	GatewayResponse []byte
	FailureReason   string
}

// StatusFromGateway maps an Iris payout status onto the payout lifecycle.
func StatusFromGateway(s string) Status {
	switch s {
	case "completed":
		return StatusCompleted
	case "failed", "rejected":
		return StatusFailed
	default:
		return StatusProcessing
	}
}
