package payout

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sidrive/sidrive-api/internal/domain/wallet"
	"github.com/sidrive/sidrive-api/internal/middleware"
	"github.com/sidrive/sidrive-api/internal/pkg/logger"
	"github.com/sidrive/sidrive-api/internal/pkg/response"
)

// Handler handles admin payout requests
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes must be mounted behind authentication and the admin role check.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{payoutID}", h.Get)
	r.Post("/{payoutID}/submit", h.Submit)
	return r
}

// Get handles GET /api/v1/admin/payouts/{payoutID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "payoutID"))
	if err != nil {
		response.BadRequest(w, "invalid payout id")
		return
	}

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, p)
}

// Submit handles POST /api/v1/admin/payouts/{payoutID}/submit
// @Summary Send a pending payout to the bank
// @Tags Admin
// @Security BearerAuth
// @Router /admin/payouts/{payoutID}/submit [post]
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "payoutID"))
	if err != nil {
		response.BadRequest(w, "invalid payout id")
		return
	}

	p, err := h.service.Submit(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, p)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrPayoutNotFound):
		response.NotFound(w, "payout not found")
	case errors.Is(err, ErrNotPending):
		response.Conflict(w, "payout is not pending")
	case errors.Is(err, wallet.ErrInsufficientFunds):
		response.Conflict(w, "insufficient platform balance")
	case errors.Is(err, ErrBelowMinimum), errors.Is(err, ErrInvalidBankDetails):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrGatewayRejected):
		logger.FromContext(r.Context()).Warn().Err(err).Msg("Payout rejected by gateway")
		response.BadGateway(w, "payout gateway error")
	case errors.Is(err, ErrGatewayUnconfirmed):
		logger.FromContext(r.Context()).Warn().Err(err).Msg("Payout result unknown, kept processing")
		response.Error(w, http.StatusGatewayTimeout, "GATEWAY_UNCONFIRMED", "payout sent but the gateway result is unknown, payout kept processing")
	default:
		logger.FromContext(r.Context()).Error().Err(err).Msg("Payout request failed")
		response.InternalError(w)
	}
}
