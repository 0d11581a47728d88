package payment

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sidrive/sidrive-api/internal/domain/order"
	"github.com/sidrive/sidrive-api/internal/domain/wallet"
	"github.com/sidrive/sidrive-api/internal/middleware"
	"github.com/sidrive/sidrive-api/internal/pkg/logger"
	"github.com/sidrive/sidrive-api/internal/pkg/midtrans"
	"github.com/sidrive/sidrive-api/internal/pkg/response"
	"github.com/sidrive/sidrive-api/internal/pkg/validator"
)

// Handler handles payment HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates new payment handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the checkout and status routes. Callers mount them behind
// bearer authentication.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/orders", h.CheckoutOrder)
	r.Post("/topups", h.CheckoutTopup)
	r.Post("/settlements", h.CheckoutSettlement)
	r.Get("/{orderID}/status", h.Status)
	return r
}

// CheckoutOrder handles POST /api/v1/payments/orders
// @Summary Open a Snap payment for an order
// @Tags Payment
// @Security BearerAuth
// @Router /payments/orders [post]
func (h *Handler) CheckoutOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req OrderCheckoutRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	out, err := h.service.CheckoutOrder(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, out)
}

// CheckoutTopup handles POST /api/v1/payments/topups
// @Summary Open a Snap payment that tops up the caller's wallet
// @Tags Payment
// @Security BearerAuth
// @Router /payments/topups [post]
func (h *Handler) CheckoutTopup(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req TopupCheckoutRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	out, err := h.service.CheckoutTopup(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, out)
}

// CheckoutSettlement handles POST /api/v1/payments/settlements
func (h *Handler) CheckoutSettlement(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req SettlementCheckoutRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	out, err := h.service.CheckoutSettlement(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, out)
}

// Status handles GET /api/v1/payments/{orderID}/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if err := validator.ValidateVar(orderID, "required,order_id"); err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	out, err := h.service.Status(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, out)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *midtrans.APIError
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		response.NotFound(w, "order not found")
	case errors.Is(err, ErrDriverNotFound):
		response.NotFound(w, "driver not found")
	case errors.Is(err, midtrans.ErrTransactionNotFound):
		response.NotFound(w, "transaction not found")
	case errors.Is(err, order.ErrNotOwner), errors.Is(err, ErrNotDriverOwner):
		response.Forbidden(w, "access denied")
	case errors.Is(err, order.ErrNotPayable):
		response.Conflict(w, "order is not awaiting payment")
	case errors.Is(err, wallet.ErrDuplicateReference):
		response.Conflict(w, "order id already used")
	case errors.Is(err, ErrFractionalAmount), errors.Is(err, ErrReservedOrderID), errors.Is(err, wallet.ErrInvalidAmount):
		response.BadRequest(w, err.Error())
	case errors.As(err, &apiErr), errors.Is(err, midtrans.ErrNotConfigured):
		logger.FromContext(r.Context()).Error().Err(err).Msg("Payment gateway request failed")
		response.BadGateway(w, "payment gateway error")
	default:
		logger.FromContext(r.Context()).Error().Err(err).Msg("Payment request failed")
		response.InternalError(w)
	}
}
