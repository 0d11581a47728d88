package midtrans

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// TransactionDetails identifies the transaction being paid. Amounts are whole rupiah.
type TransactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

// CustomerDetails is forwarded to the Snap page as-is.
type CustomerDetails struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// ItemDetail is a single line on the Snap page.
type ItemDetail struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// SnapRequest is the body of POST /transactions.
type SnapRequest struct {
	TransactionDetails TransactionDetails `json:"transaction_details"`
	CustomerDetails    *CustomerDetails   `json:"customer_details,omitempty"`
	ItemDetails        []ItemDetail       `json:"item_details,omitempty"`
	EnabledPayments    []string           `json:"enabled_payments,omitempty"`
	Callbacks          *SnapCallbacks     `json:"callbacks,omitempty"`
}

type SnapCallbacks struct {
	Finish string `json:"finish"`
}

// SnapResponse carries the token the app opens the payment page with.
type SnapResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// CreateTransaction opens a Snap transaction for the given details.
func (c *Client) CreateTransaction(ctx context.Context, req SnapRequest) (*SnapResponse, error) {
	if strings.TrimSpace(req.TransactionDetails.OrderID) == "" {
		return nil, fmt.Errorf("%w: order_id must be non-empty", ErrInvalidRequest)
	}
	if req.TransactionDetails.GrossAmount <= 0 {
		return nil, fmt.Errorf("%w: gross_amount must be > 0", ErrInvalidRequest)
	}
	if c == nil {
		return nil, ErrNotConfigured
	}
	if len(req.EnabledPayments) == 0 {
		req.EnabledPayments = c.config.EnabledPayments
	}
	if req.Callbacks == nil && c.config.FinishURL != "" {
		req.Callbacks = &SnapCallbacks{Finish: c.config.FinishURL}
	}

	var out SnapResponse
	if err := c.do(ctx, "snap_create", http.MethodPost, joinURL(c.config.SnapURL, "transactions"), req, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, errors.New("midtrans snap response missing token")
	}
	return &out, nil
}
