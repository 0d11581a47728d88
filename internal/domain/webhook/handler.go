package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sidrive/sidrive-api/internal/middleware"
	"github.com/sidrive/sidrive-api/internal/pkg/logger"
	"github.com/sidrive/sidrive-api/internal/pkg/midtrans"
	"github.com/sidrive/sidrive-api/internal/pkg/response"
	"github.com/sidrive/sidrive-api/internal/pkg/validator"
)

const (
	maxNotificationBytes = 1 << 20
	allowedHeaders       = "authorization, x-client-info, apikey, content-type"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the gateway notification endpoint.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/midtrans", h.Notify)
	r.Options("/midtrans", h.Preflight)
	return r
}

// Preflight answers CORS preflight requests. The route sits outside the API
// CORS middleware, so the headers are set here.
func (h *Handler) Preflight(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	response.Text(w, http.StatusOK, "ok")
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
}

// Notify handles POST /webhooks/midtrans. Every outcome except a signature
// failure is acknowledged with 200 so the gateway stops retrying.
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	// A gateway disconnect must not cancel a transition that has started.
	ctx := context.WithoutCancel(r.Context())
	log := logger.FromContext(ctx)
	setCORSHeaders(w)

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBytes))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read notification body")
		response.Raw(w, http.StatusOK, ErrorAck("Failed to read body"))
		return
	}

	var n midtrans.Notification
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&n); err != nil {
		log.Error().Err(err).Msg("Failed to decode notification")
		response.Raw(w, http.StatusOK, ErrorAck("Invalid JSON body"))
		return
	}
	if errs := validator.Validate(n); errs != nil {
		log.Warn().Interface("errors", errs).Str("order_id", n.OrderID).Msg("Notification failed validation")
		response.Raw(w, http.StatusOK, ErrorAck("Missing required notification fields"))
		return
	}

	log.Info().
		Str("order_id", n.OrderID).
		Str("transaction_status", n.TransactionStatus).
		Str("fraud_status", n.FraudStatus).
		Msg("Midtrans notification received")

	out, v := h.service.Process(ctx, n, raw, middleware.GetRequestID(ctx))
	status, ack := BuildAck(out, n, v)
	response.Raw(w, status, ack)
}
