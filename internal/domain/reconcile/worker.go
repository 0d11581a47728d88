// Package reconcile polls the gateway for transactions whose notification
// never arrived and applies them through the webhook flow handlers.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/sidrive/sidrive-api/internal/domain/order"
	"github.com/sidrive/sidrive-api/internal/domain/wallet"
	"github.com/sidrive/sidrive-api/internal/domain/webhook"
	"github.com/sidrive/sidrive-api/internal/pkg/logger"
	"github.com/sidrive/sidrive-api/internal/pkg/metrics"
	"github.com/sidrive/sidrive-api/internal/pkg/midtrans"
)

// Result labels for records that never reach a flow handler.
const (
	ResultMissing  = "missing"
	ResultNotFinal = "not_final"
	ResultError    = "error"
)

type OrderSource interface {
	ListStaleUnpaid(ctx context.Context, olderThan time.Time, limit int) ([]order.Order, error)
}

type EntrySource interface {
	ListStalePending(ctx context.Context, categories []wallet.Category, olderThan time.Time, limit int) ([]wallet.Entry, error)
}

type Gateway interface {
	Status(ctx context.Context, orderID string) (*midtrans.TransactionStatus, error)
}

// Applier is satisfied by *webhook.Service.
type Applier interface {
	Apply(ctx context.Context, evt webhook.Event) webhook.Outcome
}

type Config struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

// Summary counts the records handled by one pass.
type Summary struct {
	Checked int
	Applied int
	Skipped int
	Failed  int
}

// Worker periodically reconciles stale unpaid orders and pending ledger
// entries against the gateway status API.
type Worker struct {
	orders  OrderSource
	entries EntrySource
	gateway Gateway
	applier Applier
	cfg     Config
	now     func() time.Time
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewWorker(orders OrderSource, entries EntrySource, gateway Gateway, applier Applier, cfg Config) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Worker{
		orders:  orders,
		entries: entries,
		gateway: gateway,
		applier: applier,
		cfg:     cfg,
		now:     time.Now,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins the background worker
func (w *Worker) Start() {
	log.Info().Dur("interval", w.cfg.Interval).Msg("Starting reconcile worker...")
	go w.loop()
}

// Stop signals the worker and waits for the current pass to finish.
func (w *Worker) Stop() {
	log.Info().Msg("Stopping reconcile worker...")
	close(w.stopCh)
	<-w.doneCh
}

func (w *Worker) loop() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.tick()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Worker) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Interval)
	defer cancel()

	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	s := w.RunOnce(ctx)
	if s.Checked > 0 {
		log.Info().
			Int("checked", s.Checked).
			Int("applied", s.Applied).
			Int("skipped", s.Skipped).
			Int("failed", s.Failed).
			Msg("Reconcile pass finished")
	}
}

// RunOnce reconciles one batch of stale orders and one batch of stale
// pending entries.
func (w *Worker) RunOnce(ctx context.Context) Summary {
	l := log.With().Str("component", "reconcile").Logger()
	ctx = logger.WithContext(ctx, &l)

	cutoff := w.now().Add(-w.cfg.StaleAfter)
	var ids []string

	orders, err := w.orders.ListStaleUnpaid(ctx, cutoff, w.cfg.BatchSize)
	if err != nil {
		l.Error().Err(err).Msg("Failed to list stale orders")
	}
	for _, o := range orders {
		ids = append(ids, o.ID)
	}

	entries, err := w.entries.ListStalePending(ctx,
		[]wallet.Category{wallet.CategoryTopup, wallet.CategorySettlementPending}, cutoff, w.cfg.BatchSize)
	if err != nil {
		l.Error().Err(err).Msg("Failed to list stale pending entries")
	}
	for _, e := range entries {
		if id := e.OrderID(); id != "" {
			ids = append(ids, id)
		}
	}

	var s Summary
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		s.Checked++
		switch w.reconcile(ctx, id) {
		case resultApplied:
			s.Applied++
		case resultSkipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}

type result int

const (
	resultApplied result = iota
	resultSkipped
	resultFailed
)

func (w *Worker) reconcile(ctx context.Context, orderID string) result {
	l := logger.FromContext(ctx).With().Str("order_id", orderID).Logger()
	flow := string(webhook.Classify(orderID))

	st, err := w.gateway.Status(ctx, orderID)
	if errors.Is(err, midtrans.ErrTransactionNotFound) {
		// The customer never opened the payment page.
		metrics.Reconcile(flow, ResultMissing)
		return resultSkipped
	}
	if err != nil {
		l.Warn().Err(err).Msg("Status lookup failed")
		metrics.Reconcile(flow, ResultError)
		return resultFailed
	}

	n := st.AsNotification()
	evt := webhook.Event{
		OrderID:           orderID,
		TransactionStatus: n.TransactionStatus,
		FraudStatus:       n.FraudStatus,
		StatusCode:        n.StatusCode.Value,
		CanonicalAmount:   n.GrossAmount.Value,
		Source:            webhook.SourceReconcile,
	}
	if !evt.IsSuccess() && !evt.IsFailure() {
		metrics.Reconcile(flow, ResultNotFinal)
		return resultSkipped
	}

	amount, err := decimal.NewFromString(n.GrossAmount.Value)
	if err != nil {
		l.Warn().Err(err).Str("gross_amount", n.GrossAmount.Value).Msg("Unparseable gross amount")
		metrics.Reconcile(flow, ResultError)
		return resultFailed
	}
	evt.Amount = amount

	out := w.applier.Apply(ctx, evt)
	metrics.Reconcile(flow, string(out.Kind))

	switch {
	case out.Changed():
		l.Info().Str("outcome", string(out.Kind)).Msg("Missed notification reconciled")
		return resultApplied
	case out.Kind == webhook.OutcomeError, out.Kind == webhook.OutcomeLedgerFailed:
		return resultFailed
	default:
		return resultSkipped
	}
}
