package payment

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sidrive/sidrive-api/internal/pkg/midtrans"
)

// OrderCheckoutRequest opens a Snap payment for an existing order.
type OrderCheckoutRequest struct {
	OrderID         string                    `json:"order_id" validate:"required,order_id"`
	CustomerDetails *midtrans.CustomerDetails `json:"customer_details,omitempty"`
	ItemDetails     []midtrans.ItemDetail     `json:"item_details,omitempty" validate:"omitempty,dive"`
}

// TopupCheckoutRequest opens a Snap payment that credits the caller's wallet.
type TopupCheckoutRequest struct {
	OrderID         string                    `json:"order_id" validate:"required,order_id,order_prefix=TOPUP"`
	Amount          decimal.Decimal           `json:"amount" validate:"positive_amount"`
	CustomerDetails *midtrans.CustomerDetails `json:"customer_details,omitempty"`
}

// SettlementCheckoutRequest opens a Snap payment a driver uses to settle
// cash-collected commission with the platform.
type SettlementCheckoutRequest struct {
	OrderID         string                    `json:"order_id" validate:"required,order_id,order_prefix=SETL"`
	DriverID        uuid.UUID                 `json:"driver_id" validate:"required"`
	Amount          decimal.Decimal           `json:"amount" validate:"positive_amount"`
	CustomerDetails *midtrans.CustomerDetails `json:"customer_details,omitempty"`
	ItemDetails     []midtrans.ItemDetail     `json:"item_details,omitempty" validate:"omitempty,dive"`
}

// CheckoutResponse is returned by every checkout endpoint.
type CheckoutResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
	OrderID     string `json:"order_id"`
}

// StatusResponse is the gateway's current view of a transaction.
type StatusResponse struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status,omitempty"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type,omitempty"`
	TransactionTime   string `json:"transaction_time,omitempty"`
}
