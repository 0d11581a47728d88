package payout_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidrive/sidrive-api/internal/domain/payout"
	"github.com/sidrive/sidrive-api/internal/domain/wallet"
	"github.com/sidrive/sidrive-api/internal/pkg/events"
	"github.com/sidrive/sidrive-api/internal/pkg/midtrans"
)

type fakeStore struct {
	payouts     map[uuid.UUID]*payout.Payout
	resolutions []payout.Resolution
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*payout.Payout, error) {
	p, ok := s.payouts[id]
	if !ok {
		return nil, payout.ErrPayoutNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) MarkProcessing(ctx context.Context, id uuid.UUID, within payout.TxFunc) (bool, error) {
	p := s.payouts[id]
	if p.Status != payout.StatusPending {
		return false, nil
	}
	if err := within(ctx, nil); err != nil {
		return false, err
	}
	p.Status = payout.StatusProcessing
	return true, nil
}

func (s *fakeStore) Resolve(ctx context.Context, id uuid.UUID, res payout.Resolution, within payout.TxFunc) (bool, error) {
	p := s.payouts[id]
	if p.Status != payout.StatusProcessing {
		return false, nil
	}
	if within != nil {
		if err := within(ctx, nil); err != nil {
			return false, err
		}
	}
	p.Status = res.Status
	if res.ReferenceNo != "" {
		p.ReferenceNo = &res.ReferenceNo
	}
	if res.FailureReason != "" {
		p.FailureReason = &res.FailureReason
	}
	s.resolutions = append(s.resolutions, res)
	return true, nil
}

type fakeLedger struct {
	balance   decimal.Decimal
	mutations []wallet.Mutation
}

func (l *fakeLedger) ApplyTx(_ context.Context, _ *sqlx.Tx, m wallet.Mutation) (wallet.Result, error) {
	next := l.balance.Add(m.Amount)
	if m.Direction == wallet.Debit {
		next = l.balance.Sub(m.Amount)
	}
	if next.IsNegative() {
		return wallet.Result{}, wallet.ErrInsufficientFunds
	}
	l.balance = next
	l.mutations = append(l.mutations, m)
	return wallet.Result{BalanceAfter: next}, nil
}

func (l *fakeLedger) Platform() wallet.Account {
	return wallet.PlatformAccount("platform")
}

type fakeGateway struct {
	items  []midtrans.PayoutItem
	result *midtrans.PayoutResult
	err    error
}

func (g *fakeGateway) CreatePayout(_ context.Context, item midtrans.PayoutItem) (*midtrans.PayoutResult, error) {
	g.items = append(g.items, item)
	return g.result, g.err
}

type fakeEmitter struct {
	events []events.PaymentEvent
}

func (e *fakeEmitter) Emit(evt events.PaymentEvent) {
	e.events = append(e.events, evt)
}

type fixture struct {
	svc     *payout.Service
	store   *fakeStore
	ledger  *fakeLedger
	gateway *fakeGateway
	emitter *fakeEmitter
}

func newFixture(balance int64) *fixture {
	f := &fixture{
		store:   &fakeStore{payouts: map[uuid.UUID]*payout.Payout{}},
		ledger:  &fakeLedger{balance: decimal.NewFromInt(balance)},
		gateway: &fakeGateway{},
		emitter: &fakeEmitter{},
	}
	f.svc = payout.NewService(f.store, f.ledger, f.gateway, f.emitter, decimal.NewFromInt(100000))
	return f
}

func (f *fixture) addPayout(amount int64) *payout.Payout {
	p := &payout.Payout{
		ID:                uuid.New(),
		AdminID:           uuid.New(),
		Amount:            decimal.NewFromInt(amount),
		BankCode:          "bca",
		AccountNumber:     "1234567890",
		AccountHolderName: "PT Sidrive",
		Status:            payout.StatusPending,
	}
	f.store.payouts[p.ID] = p
	return p
}

func TestSubmitCompleted(t *testing.T) {
	f := newFixture(500000)
	p := f.addPayout(200000)
	f.gateway.result = &midtrans.PayoutResult{Status: midtrans.PayoutCompleted, ReferenceNo: "ref-1"}

	out, err := f.svc.Submit(context.Background(), uuid.New(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusCompleted, out.Status)
	require.NotNil(t, out.ReferenceNo)
	assert.Equal(t, "ref-1", *out.ReferenceNo)

	assert.True(t, f.ledger.balance.Equal(decimal.NewFromInt(300000)))
	require.Len(t, f.ledger.mutations, 1)
	m := f.ledger.mutations[0]
	assert.Equal(t, wallet.Debit, m.Direction)
	assert.Equal(t, wallet.CategoryPayout, m.Category)
	assert.Equal(t, p.ID.String(), m.ReferenceID)
	assert.Contains(t, m.Description, "****7890")

	require.Len(t, f.gateway.items, 1)
	assert.Equal(t, "1234567890", f.gateway.items[0].BeneficiaryAccount)

	require.Len(t, f.emitter.events, 1)
	assert.Equal(t, events.TypePayoutUpdated, f.emitter.events[0].Type)
	assert.Equal(t, "completed", f.emitter.events[0].Status)
}

func TestSubmitQueuedStaysProcessing(t *testing.T) {
	f := newFixture(500000)
	p := f.addPayout(150000)
	f.gateway.result = &midtrans.PayoutResult{Status: midtrans.PayoutQueued, ReferenceNo: "ref-2"}

	out, err := f.svc.Submit(context.Background(), uuid.New(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusProcessing, out.Status)
	assert.Len(t, f.ledger.mutations, 1)
}

func TestSubmitGatewayErrorReversesDebit(t *testing.T) {
	f := newFixture(500000)
	p := f.addPayout(200000)
	f.gateway.err = &midtrans.APIError{StatusCode: 401, Message: "unauthorized"}

	_, err := f.svc.Submit(context.Background(), uuid.New(), p.ID)
	require.ErrorIs(t, err, payout.ErrGatewayRejected)

	var apiErr *midtrans.APIError
	assert.True(t, errors.As(err, &apiErr))

	assert.Equal(t, payout.StatusFailed, f.store.payouts[p.ID].Status)
	assert.True(t, f.ledger.balance.Equal(decimal.NewFromInt(500000)))
	require.Len(t, f.ledger.mutations, 2)
	assert.Equal(t, wallet.CategoryPayoutReversal, f.ledger.mutations[1].Category)
	assert.Equal(t, wallet.Credit, f.ledger.mutations[1].Direction)
	assert.Equal(t, p.ID.String(), f.ledger.mutations[1].ReferenceID)
	assert.NotEmpty(t, f.store.resolutions[0].FailureReason)

	require.Len(t, f.emitter.events, 1)
	assert.Equal(t, "failed", f.emitter.events[0].Status)
}

func TestSubmitUnknownGatewayResultKeepsDebit(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"server error", &midtrans.APIError{StatusCode: 500, Message: "internal error"}},
		{"unavailable", &midtrans.APIError{StatusCode: 503, Message: "maintenance"}},
		{"timeout", fmt.Errorf("midtrans api call failed: %w", context.DeadlineExceeded)},
		{"connection reset", errors.New("read tcp 10.0.0.1:443: connection reset by peer")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(500000)
			p := f.addPayout(200000)
			f.gateway.err = tt.err

			_, err := f.svc.Submit(context.Background(), uuid.New(), p.ID)
			require.ErrorIs(t, err, payout.ErrGatewayUnconfirmed)
			assert.NotErrorIs(t, err, payout.ErrGatewayRejected)

			stored := f.store.payouts[p.ID]
			assert.Equal(t, payout.StatusProcessing, stored.Status)
			require.NotNil(t, stored.FailureReason)
			assert.Contains(t, *stored.FailureReason, "gateway result unknown")

			assert.True(t, f.ledger.balance.Equal(decimal.NewFromInt(300000)))
			require.Len(t, f.ledger.mutations, 1)
			assert.Equal(t, wallet.Debit, f.ledger.mutations[0].Direction)

			require.Len(t, f.emitter.events, 1)
			assert.Equal(t, "processing", f.emitter.events[0].Status)
		})
	}
}

func TestSubmitGatewayTimeoutAfterDelivery(t *testing.T) {
	var received atomic.Int32
	iris := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		select {
		case <-time.After(300 * time.Millisecond):
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"payouts":[{"status":"queued","reference_no":"ref-late"}]}`))
	}))
	defer iris.Close()

	client := midtrans.NewClient(midtrans.Config{
		ServerKey: "SB-Mid-server-payout",
		IrisURL:   iris.URL,
		Timeout:   50 * time.Millisecond,
	})

	f := newFixture(500000)
	f.svc = payout.NewService(f.store, f.ledger, client, f.emitter, decimal.NewFromInt(100000))
	p := f.addPayout(200000)

	_, err := f.svc.Submit(context.Background(), uuid.New(), p.ID)
	require.ErrorIs(t, err, payout.ErrGatewayUnconfirmed)

	assert.Equal(t, int32(1), received.Load())
	assert.Equal(t, payout.StatusProcessing, f.store.payouts[p.ID].Status)
	assert.True(t, f.ledger.balance.Equal(decimal.NewFromInt(300000)))
	require.Len(t, f.ledger.mutations, 1)
	assert.Equal(t, wallet.CategoryPayout, f.ledger.mutations[0].Category)
}

type cancelingGateway struct {
	cancel context.CancelFunc
	ctxErr error
	result *midtrans.PayoutResult
}

func (g *cancelingGateway) CreatePayout(ctx context.Context, _ midtrans.PayoutItem) (*midtrans.PayoutResult, error) {
	g.cancel()
	g.ctxErr = ctx.Err()
	return g.result, nil
}

func TestSubmitSurvivesCanceledRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(500000)
	gw := &cancelingGateway{
		cancel: cancel,
		result: &midtrans.PayoutResult{Status: midtrans.PayoutCompleted, ReferenceNo: "ref-5"},
	}
	f.svc = payout.NewService(f.store, f.ledger, gw, f.emitter, decimal.NewFromInt(100000))
	p := f.addPayout(200000)

	_, err := f.svc.Submit(ctx, uuid.New(), p.ID)
	require.NoError(t, err)
	assert.NoError(t, gw.ctxErr)
	assert.Equal(t, payout.StatusCompleted, f.store.payouts[p.ID].Status)
}

func TestSubmitGatewayFailedStatusReversesDebit(t *testing.T) {
	f := newFixture(500000)
	p := f.addPayout(200000)
	f.gateway.result = &midtrans.PayoutResult{Status: midtrans.PayoutFailed, ReferenceNo: "ref-3"}

	out, err := f.svc.Submit(context.Background(), uuid.New(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusFailed, out.Status)
	assert.True(t, f.ledger.balance.Equal(decimal.NewFromInt(500000)))
}

func TestSubmitRejections(t *testing.T) {
	t.Run("below minimum", func(t *testing.T) {
		f := newFixture(500000)
		p := f.addPayout(99999)
		_, err := f.svc.Submit(context.Background(), uuid.New(), p.ID)
		assert.ErrorIs(t, err, payout.ErrBelowMinimum)
		assert.Empty(t, f.gateway.items)
	})

	t.Run("insufficient platform balance", func(t *testing.T) {
		f := newFixture(100000)
		p := f.addPayout(200000)
		_, err := f.svc.Submit(context.Background(), uuid.New(), p.ID)
		assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)
		assert.Equal(t, payout.StatusPending, f.store.payouts[p.ID].Status)
		assert.Empty(t, f.gateway.items)
	})

	t.Run("not pending", func(t *testing.T) {
		f := newFixture(500000)
		p := f.addPayout(200000)
		p.Status = payout.StatusCompleted
		_, err := f.svc.Submit(context.Background(), uuid.New(), p.ID)
		assert.ErrorIs(t, err, payout.ErrNotPending)
	})

	t.Run("bad bank code", func(t *testing.T) {
		f := newFixture(500000)
		p := f.addPayout(200000)
		p.BankCode = "b c a"
		_, err := f.svc.Submit(context.Background(), uuid.New(), p.ID)
		assert.ErrorIs(t, err, payout.ErrInvalidBankDetails)
	})

	t.Run("unknown payout", func(t *testing.T) {
		f := newFixture(500000)
		_, err := f.svc.Submit(context.Background(), uuid.New(), uuid.New())
		assert.ErrorIs(t, err, payout.ErrPayoutNotFound)
	})
}

func TestSubmitTwiceDebitsOnce(t *testing.T) {
	f := newFixture(500000)
	p := f.addPayout(200000)
	f.gateway.result = &midtrans.PayoutResult{Status: midtrans.PayoutCompleted, ReferenceNo: "ref-4"}

	_, err := f.svc.Submit(context.Background(), uuid.New(), p.ID)
	require.NoError(t, err)
	_, err = f.svc.Submit(context.Background(), uuid.New(), p.ID)
	assert.ErrorIs(t, err, payout.ErrNotPending)
	assert.Len(t, f.ledger.mutations, 1)
}

func TestStatusFromGateway(t *testing.T) {
	tests := map[string]payout.Status{
		"completed": payout.StatusCompleted,
		"failed":    payout.StatusFailed,
		"rejected":  payout.StatusFailed,
		"queued":    payout.StatusProcessing,
		"processed": payout.StatusProcessing,
		"":          payout.StatusProcessing,
	}
	for in, want := range tests {
		assert.Equal(t, want, payout.StatusFromGateway(in), in)
	}
}
