package midtrans

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// TransactionStatus is the Core API view of a transaction.
type TransactionStatus struct {
	OrderID           string     `json:"order_id"`
	TransactionID     string     `json:"transaction_id"`
	TransactionStatus string     `json:"transaction_status"`
	FraudStatus       string     `json:"fraud_status"`
	StatusCode        FlexString `json:"status_code"`
	StatusMessage     string     `json:"status_message"`
	GrossAmount       FlexString `json:"gross_amount"`
	PaymentType       string     `json:"payment_type"`
	TransactionTime   string     `json:"transaction_time"`
	SignatureKey      string     `json:"signature_key"`
}

// ErrTransactionNotFound is returned when the gateway has no record of the order.
var ErrTransactionNotFound = errors.New("midtrans transaction not found")

// Status fetches the current status of orderID.
func (c *Client) Status(ctx context.Context, orderID string) (*TransactionStatus, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order_id must be non-empty", ErrInvalidRequest)
	}

	if c == nil {
		return nil, ErrNotConfigured
	}

	var out TransactionStatus
	endpoint := joinURL(c.config.APIURL, url.PathEscape(orderID)+"/status")
	if err := c.do(ctx, "status", http.MethodGet, endpoint, nil, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	// The Core API reports unknown transactions with HTTP 200 and status_code 404.
	if out.StatusCode.Value == "404" {
		return nil, ErrTransactionNotFound
	}
	return &out, nil
}

// AsNotification converts a status response into the notification shape so it
// can be applied by the same flow handlers.
func (s *TransactionStatus) AsNotification() Notification {
	return Notification{
		OrderID:           s.OrderID,
		TransactionStatus: s.TransactionStatus,
		FraudStatus:       s.FraudStatus,
		StatusCode:        s.StatusCode,
		GrossAmount:       s.GrossAmount,
		SignatureKey:      s.SignatureKey,
		TransactionID:     s.TransactionID,
		PaymentType:       s.PaymentType,
		TransactionTime:   s.TransactionTime,
	}
}
