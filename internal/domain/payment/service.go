// Package payment opens Snap transactions for orders, wallet top-ups and
// driver settlements, and reports gateway transaction status.
package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sidrive/sidrive-api/internal/domain/order"
	"github.com/sidrive/sidrive-api/internal/domain/wallet"
	"github.com/sidrive/sidrive-api/internal/domain/webhook"
	"github.com/sidrive/sidrive-api/internal/pkg/logger"
	"github.com/sidrive/sidrive-api/internal/pkg/midtrans"
)

// Gateway is the part of the Midtrans client checkout needs.
type Gateway interface {
	CreateTransaction(ctx context.Context, req midtrans.SnapRequest) (*midtrans.SnapResponse, error)
	Status(ctx context.Context, orderID string) (*midtrans.TransactionStatus, error)
}

type OrderStore interface {
	GetByID(ctx context.Context, id string) (*order.Order, error)
	SetPaymentToken(ctx context.Context, id, token string, gatewayResponse []byte) error
}

type PendingLedger interface {
	CreatePending(ctx context.Context, p wallet.PendingEntry) (*wallet.Entry, error)
}

type DriverStore interface {
	UserIDForDriver(ctx context.Context, driverID uuid.UUID) (uuid.UUID, error)
}

type Service struct {
	gateway Gateway
	orders  OrderStore
	ledger  PendingLedger
	drivers DriverStore
}

func NewService(gateway Gateway, orders OrderStore, ledger PendingLedger, drivers DriverStore) *Service {
	return &Service{gateway: gateway, orders: orders, ledger: ledger, drivers: drivers}
}

// CheckoutOrder opens a Snap transaction for an unpaid order owned by userID
// and stores the token on the order.
func (s *Service) CheckoutOrder(ctx context.Context, userID uuid.UUID, req OrderCheckoutRequest) (*CheckoutResponse, error) {
	// Notifications for this id would be routed away from the order flow.
	if webhook.Classify(req.OrderID) != webhook.FlowOrderPayment {
		return nil, ErrReservedOrderID
	}

	o, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, order.ErrNotOwner
	}
	if o.PaymentStatus != order.PaymentUnpaid {
		return nil, order.ErrNotPayable
	}

	gross, err := wholeRupiah(o.TotalAmount)
	if err != nil {
		return nil, err
	}

	snap, err := s.gateway.CreateTransaction(ctx, midtrans.SnapRequest{
		TransactionDetails: midtrans.TransactionDetails{OrderID: o.ID, GrossAmount: gross},
		CustomerDetails:    req.CustomerDetails,
		ItemDetails:        req.ItemDetails,
	})
	if err != nil {
		return nil, fmt.Errorf("create snap transaction: %w", err)
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	if err := s.orders.SetPaymentToken(ctx, o.ID, snap.Token, raw); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info().Str("order_id", o.ID).Str("kind", string(o.Kind)).Msg("Order checkout created")
	return &CheckoutResponse{Token: snap.Token, RedirectURL: snap.RedirectURL, OrderID: o.ID}, nil
}

// CheckoutTopup opens a Snap transaction and records a pending top-up that
// the webhook later credits to userID.
func (s *Service) CheckoutTopup(ctx context.Context, userID uuid.UUID, req TopupCheckoutRequest) (*CheckoutResponse, error) {
	gross, err := wholeRupiah(req.Amount)
	if err != nil {
		return nil, err
	}

	snap, err := s.gateway.CreateTransaction(ctx, midtrans.SnapRequest{
		TransactionDetails: midtrans.TransactionDetails{OrderID: req.OrderID, GrossAmount: gross},
		CustomerDetails:    req.CustomerDetails,
		ItemDetails: []midtrans.ItemDetail{{
			ID:       req.OrderID,
			Name:     "Wallet top-up",
			Price:    gross,
			Quantity: 1,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("create snap transaction: %w", err)
	}

	if _, err := s.ledger.CreatePending(ctx, wallet.PendingEntry{
		Account:     wallet.UserAccount(userID),
		Category:    wallet.CategoryTopup,
		Amount:      req.Amount,
		OrderID:     req.OrderID,
		Description: "Wallet top-up (pending)",
		Metadata:    wallet.Metadata{"snap_token": snap.Token},
	}); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info().
		Str("order_id", req.OrderID).
		Str("user_id", userID.String()).
		Str("amount", req.Amount.String()).
		Msg("Top-up checkout created")
	return &CheckoutResponse{Token: snap.Token, RedirectURL: snap.RedirectURL, OrderID: req.OrderID}, nil
}

// CheckoutSettlement opens a Snap transaction for a driver paying the
// platform. The pending entry belongs to the driver's user account and keeps
// the driver id for the settlement webhook.
func (s *Service) CheckoutSettlement(ctx context.Context, userID uuid.UUID, req SettlementCheckoutRequest) (*CheckoutResponse, error) {
	gross, err := wholeRupiah(req.Amount)
	if err != nil {
		return nil, err
	}

	ownerID, err := s.drivers.UserIDForDriver(ctx, req.DriverID)
	if err != nil {
		return nil, err
	}
	if ownerID != userID {
		return nil, ErrNotDriverOwner
	}

	snap, err := s.gateway.CreateTransaction(ctx, midtrans.SnapRequest{
		TransactionDetails: midtrans.TransactionDetails{OrderID: req.OrderID, GrossAmount: gross},
		CustomerDetails:    req.CustomerDetails,
		ItemDetails:        req.ItemDetails,
	})
	if err != nil {
		return nil, fmt.Errorf("create snap transaction: %w", err)
	}

	if _, err := s.ledger.CreatePending(ctx, wallet.PendingEntry{
		Account:     wallet.UserAccount(ownerID),
		Category:    wallet.CategorySettlementPending,
		Amount:      req.Amount,
		OrderID:     req.OrderID,
		Description: "Settlement to platform (pending) - Order ID: " + req.OrderID,
		Metadata: wallet.Metadata{
			"driver_id":       req.DriverID.String(),
			"snap_token":      snap.Token,
			"settlement_type": "driver_to_admin",
		},
	}); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info().
		Str("order_id", req.OrderID).
		Str("driver_id", req.DriverID.String()).
		Str("amount", req.Amount.String()).
		Msg("Settlement checkout created")
	return &CheckoutResponse{Token: snap.Token, RedirectURL: snap.RedirectURL, OrderID: req.OrderID}, nil
}

// Status asks the gateway for the current state of orderID.
func (s *Service) Status(ctx context.Context, orderID string) (*StatusResponse, error) {
	st, err := s.gateway.Status(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{
		OrderID:           st.OrderID,
		TransactionStatus: st.TransactionStatus,
		FraudStatus:       st.FraudStatus,
		StatusCode:        st.StatusCode.Value,
		GrossAmount:       st.GrossAmount.Value,
		PaymentType:       st.PaymentType,
		TransactionTime:   st.TransactionTime,
	}, nil
}

// Snap only accepts whole rupiah amounts.
func wholeRupiah(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, wallet.ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(0)) {
		return 0, ErrFractionalAmount
	}
	return amount.IntPart(), nil
}
