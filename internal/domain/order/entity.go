package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindRide     Kind = "ride"
	KindMerchant Kind = "merchant"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
	PaymentFailed PaymentStatus = "failed"
)

// Status is the order lifecycle state. Only the states written by payment
// handling are listed; dispatch owns the rest.
type Status string

const (
	StatusPendingPayment               Status = "pending_payment"
	StatusSearchingDriver              Status = "searching_driver"
	StatusAwaitingMerchantConfirmation Status = "awaiting_merchant_confirmation"
	StatusCancelled                    Status = "cancelled"
)

type Order struct {
	ID              string             `db:"id" json:"id"`
	UserID          uuid.UUID          `db:"user_id" json:"user_id"`
	Kind            Kind               `db:"kind" json:"kind"`
	TotalAmount     decimal.Decimal    `db:"total_amount" json:"total_amount"`
	PaymentMethod   string             `db:"payment_method" json:"payment_method"`
	PaymentStatus   PaymentStatus      `db:"payment_status" json:"payment_status"`
	OrderStatus     Status             `db:"order_status" json:"order_status"`
	PaymentToken    *string            `db:"payment_token" json:"payment_token,omitempty"`
	GatewayResponse types.NullJSONText `db:"gateway_response" json:"-"`
	SearchStartedAt *time.Time         `db:"search_started_at" json:"search_started_at,omitempty"`
	PaidAt          *time.Time         `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updated_at"`
}

func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentPaid
}

// StatusAfterPayment is where a confirmed payment moves the order.
func (o *Order) StatusAfterPayment() Status {
	if o.Kind == KindMerchant {
		return StatusAwaitingMerchantConfirmation
	}
	return StatusSearchingDriver
}

// StartsSearch reports whether a confirmed payment starts driver search.
func (o *Order) StartsSearch() bool {
	return o.StatusAfterPayment() == StatusSearchingDriver
}
