package midtrans

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// Iris payout statuses.
const (
	PayoutQueued    = "queued"
	PayoutProcessed = "processed"
	PayoutCompleted = "completed"
	PayoutFailed    = "failed"
)

// PayoutItem is a single beneficiary transfer.
type PayoutItem struct {
	BeneficiaryName    string          `json:"beneficiary_name"`
	BeneficiaryAccount string          `json:"beneficiary_account"`
	BeneficiaryBank    string          `json:"beneficiary_bank"`
	BeneficiaryEmail   string          `json:"beneficiary_email,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	Notes              string          `json:"notes"`
}

type payoutRequest struct {
	Payouts []payoutItemWire `json:"payouts"`
}

// The payout API expects the amount as a string.
type payoutItemWire struct {
	BeneficiaryName    string `json:"beneficiary_name"`
	BeneficiaryAccount string `json:"beneficiary_account"`
	BeneficiaryBank    string `json:"beneficiary_bank"`
	BeneficiaryEmail   string `json:"beneficiary_email,omitempty"`
	Amount             string `json:"amount"`
	Notes              string `json:"notes"`
}

// PayoutResult is the gateway's view of one submitted payout.
type PayoutResult struct {
	Status      string `json:"status"`
	ReferenceNo string `json:"reference_no"`
}

type payoutResponse struct {
	Payouts []PayoutResult `json:"payouts"`
}

// CreatePayout submits a single payout and returns its gateway result.
func (c *Client) CreatePayout(ctx context.Context, item PayoutItem) (*PayoutResult, error) {
	if !item.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be > 0", ErrInvalidRequest)
	}

	if c == nil {
		return nil, ErrNotConfigured
	}

	req := payoutRequest{Payouts: []payoutItemWire{{
		BeneficiaryName:    item.BeneficiaryName,
		BeneficiaryAccount: item.BeneficiaryAccount,
		BeneficiaryBank:    strings.ToLower(item.BeneficiaryBank),
		BeneficiaryEmail:   item.BeneficiaryEmail,
		Amount:             item.Amount.String(),
		Notes:              item.Notes,
	}}}

	var out payoutResponse
	if err := c.do(ctx, "iris_payout", http.MethodPost, joinURL(c.config.IrisURL, "payouts"), req, &out); err != nil {
		return nil, err
	}
	if len(out.Payouts) == 0 {
		return nil, errors.New("invalid midtrans payout response")
	}
	return &out.Payouts[0], nil
}
