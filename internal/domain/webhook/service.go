package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sidrive/sidrive-api/internal/pkg/events"
	"github.com/sidrive/sidrive-api/internal/pkg/logger"
	"github.com/sidrive/sidrive-api/internal/pkg/metrics"
	"github.com/sidrive/sidrive-api/internal/pkg/midtrans"
)

// Emitter publishes committed payment transitions.
type Emitter interface {
	Emit(evt events.PaymentEvent)
}

// Archiver keeps a copy of a verified notification body.
type Archiver interface {
	Save(flow, orderID, requestID string, body []byte)
}

// Service verifies gateway notifications and dispatches them to the flow
// handler selected by the order id prefix.
type Service struct {
	serverKey string
	handlers  map[Flow]FlowHandler
	emitter   Emitter
	archive   Archiver
}

// NewService creates a webhook service. emitter and archive may be nil.
func NewService(serverKey string, handlers map[Flow]FlowHandler, emitter Emitter, archive Archiver) *Service {
	return &Service{serverKey: serverKey, handlers: handlers, emitter: emitter, archive: archive}
}

// Process verifies n and applies it. raw is the body as received and is
// only used for archiving.
func (s *Service) Process(ctx context.Context, n midtrans.Notification, raw []byte, requestID string) (Outcome, midtrans.Verification) {
	log := logger.FromContext(ctx)
	flow := Classify(n.OrderID)

	v := midtrans.Verify(n, s.serverKey)
	metrics.SignatureRule(v.Rule)
	if !v.Valid {
		log.Warn().
			Str("order_id", n.OrderID).
			Str("status_code", n.StatusCode.Value).
			Str("status_code_kind", n.StatusCode.Kind).
			Str("gross_amount", n.GrossAmount.Value).
			Str("gross_amount_kind", n.GrossAmount.Kind).
			Str("received_prefix", midtrans.Truncate(n.SignatureKey, 16)).
			Str("expected_prefix", v.ExpectedPrefix).
			Str("server_key", midtrans.KeyPreview(s.serverKey)).
			Msg("Signature verification failed")
		metrics.WebhookOutcome(string(flow), string(OutcomeInvalidSignature))
		return Outcome{
			Kind:    OutcomeInvalidSignature,
			Flow:    flow,
			OrderID: n.OrderID,
			Message: "Invalid signature",
			Err:     ErrInvalidSignature,
		}, v
	}

	log.Info().
		Str("order_id", n.OrderID).
		Str("flow", string(flow)).
		Int("rule", v.Rule).
		Str("canonical_amount", v.CanonicalAmount).
		Msg("Signature verified")

	if s.archive != nil {
		s.archive.Save(string(flow), n.OrderID, requestID, raw)
	}

	amount, err := decimal.NewFromString(v.CanonicalAmount)
	if err != nil {
		out := Outcome{
			Kind:    OutcomeError,
			Flow:    flow,
			OrderID: n.OrderID,
			Message: "Invalid gross_amount",
			Err:     fmt.Errorf("%w: gross_amount %q", ErrMalformedNotification, v.CanonicalAmount),
		}
		log.Error().Err(out.Err).Str("order_id", n.OrderID).Msg("Notification rejected")
		metrics.WebhookOutcome(string(flow), string(out.Kind))
		return out, v
	}

	return s.Apply(ctx, Event{
		OrderID:           n.OrderID,
		TransactionStatus: n.TransactionStatus,
		FraudStatus:       n.FraudStatus,
		StatusCode:        n.StatusCode.Value,
		CanonicalAmount:   v.CanonicalAmount,
		Amount:            amount,
		Source:            SourceWebhook,
	}), v
}

// Apply routes an already trusted event to its flow handler, then publishes
// the resulting transition. Handler panics and errors become an error outcome.
func (s *Service) Apply(ctx context.Context, evt Event) (out Outcome) {
	start := time.Now()
	flow := Classify(evt.OrderID)
	log := logger.FromContext(ctx).With().
		Str("order_id", evt.OrderID).
		Str("flow", string(flow)).
		Str("transaction_status", evt.TransactionStatus).
		Str("source", string(evt.Source)).
		Logger()

	defer func() {
		if rec := recover(); rec != nil {
			out = Outcome{Kind: OutcomeError, Message: "Internal error", Err: fmt.Errorf("flow handler panic: %v", rec)}
		}
		out.Flow = flow
		out.OrderID = evt.OrderID

		switch {
		case out.Kind == OutcomeError:
			log.Error().Err(out.Err).Msg("Notification handling failed")
		case out.Err != nil:
			log.Error().Err(out.Err).Str("outcome", string(out.Kind)).Msg("Notification not applied")
		default:
			log.Info().Str("outcome", string(out.Kind)).Str("new_status", out.NewStatus).Msg("Notification handled")
		}

		metrics.WebhookOutcome(string(flow), string(out.Kind))
		metrics.WebhookDuration(string(flow), start)
	}()

	h, ok := s.handlers[flow]
	if !ok {
		return Outcome{Kind: OutcomeError, Message: "No handler for flow", Err: fmt.Errorf("no handler registered for flow %q", flow)}
	}

	out, err := h.Handle(logger.WithContext(ctx, &log), evt)
	if err != nil {
		return Outcome{Kind: OutcomeError, Message: err.Error(), Err: err}
	}

	if out.Changed() && out.EventType != "" && s.emitter != nil {
		pe := events.NewPaymentEvent(out.EventType, evt.OrderID, string(flow), evt.Amount)
		pe.Status = out.NewStatus
		pe.AccountID = out.AccountID
		s.emitter.Emit(pe)
	}
	return out
}
