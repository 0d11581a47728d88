// Package events publishes payment state changes to downstream consumers
// (notification senders, analytics) after the change is committed.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/sidrive/sidrive-api/internal/pkg/metrics"
)

type Type string

const (
	TypePaymentConfirmed   Type = "payment.confirmed"
	TypePaymentFailed      Type = "payment.failed"
	TypeTopupCredited      Type = "wallet.topup_credited"
	TypeSettlementCredited Type = "wallet.settlement_credited"
	TypePayoutUpdated      Type = "payout.updated"
)

// PaymentEvent is the message emitted for every committed payment transition.
type PaymentEvent struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	OrderID    string          `json:"order_id"`
	Flow       string          `json:"flow"`
	Status     string          `json:"status,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	AccountID  string          `json:"account_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewPaymentEvent stamps id and time on a new event.
func NewPaymentEvent(t Type, orderID, flow string, amount decimal.Decimal) PaymentEvent {
	return PaymentEvent{
		ID:         uuid.New().String(),
		Type:       t,
		OrderID:    orderID,
		Flow:       flow,
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers a single event to one sink.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, evt PaymentEvent) error
	Close() error
}

// Fanout delivers events to every configured sink without blocking the caller.
type Fanout struct {
	sinks   []Publisher
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewFanout creates a fanout; nil sinks are skipped.
func NewFanout(timeout time.Duration, sinks ...Publisher) *Fanout {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	f := &Fanout{timeout: timeout}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Emit publishes evt in the background. Failures are logged and counted only.
func (f *Fanout) Emit(evt PaymentEvent) {
	if f == nil || len(f.sinks) == 0 {
		return
	}
	for _, sink := range f.sinks {
		f.wg.Add(1)
		go func(sink Publisher) {
			defer f.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
			defer cancel()

			if err := sink.Publish(ctx, evt); err != nil {
				metrics.EventPublish(sink.Name(), "error")
				log.Warn().Err(err).
					Str("sink", sink.Name()).
					Str("event_type", string(evt.Type)).
					Str("order_id", evt.OrderID).
					Msg("Failed to publish payment event")
				return
			}
			metrics.EventPublish(sink.Name(), "success")
		}(sink)
	}
}

// Close waits for in-flight deliveries and closes every sink.
func (f *Fanout) Close() {
	if f == nil {
		return
	}
	f.wg.Wait()
	for _, sink := range f.sinks {
		if err := sink.Close(); err != nil {
			log.Error().Err(err).Str("sink", sink.Name()).Msg("Error closing event sink")
		}
	}
}
