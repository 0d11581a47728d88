package payout_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidrive/sidrive-api/internal/domain/payout"
	"github.com/sidrive/sidrive-api/internal/domain/wallet"
	"github.com/sidrive/sidrive-api/internal/pkg/midtrans"
	"github.com/sidrive/sidrive-api/internal/pkg/testdb"
)

func insertPayout(t *testing.T, db *sqlx.DB, amount int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO payouts (id, admin_id, amount, bank_code, account_number, account_holder_name)
		VALUES ($1, $2, $3, 'bca', '1234567890', 'PT Sidrive')
	`, id, uuid.New(), decimal.NewFromInt(amount))
	require.NoError(t, err)
	return id
}

func fundPlatform(t *testing.T, ledger *wallet.Ledger, amount int64) {
	t.Helper()
	_, err := ledger.Apply(context.Background(), wallet.Mutation{
		Account:     ledger.Platform(),
		Amount:      decimal.NewFromInt(amount),
		Direction:   wallet.Credit,
		Category:    wallet.CategoryOrderPayment,
		ReferenceID: "seed-" + uuid.NewString()[:8],
		Description: "seed",
	})
	require.NoError(t, err)
}

func TestConcurrentSubmitDebitsOnce(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	ledger := wallet.NewLedger(db, testdb.PlatformWalletID())
	fundPlatform(t, ledger, 1000000)
	id := insertPayout(t, db, 250000)

	gw := &lockedGateway{result: &midtrans.PayoutResult{Status: midtrans.PayoutQueued, ReferenceNo: "ref-db"}}
	svc := payout.NewService(payout.NewRepository(db), ledger, gw, nil, decimal.NewFromInt(100000))

	const attempts = 5
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Submit(ctx, uuid.New(), id)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, payout.ErrNotPending)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, gw.calls)

	balance, err := ledger.Balance(ctx, ledger.Platform())
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(750000)), balance.String())

	p, err := payout.NewRepository(db).GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusProcessing, p.Status)
	require.NotNil(t, p.ReferenceNo)
	assert.Equal(t, "ref-db", *p.ReferenceNo)
	assert.NotNil(t, p.ProcessedAt)
	assert.Nil(t, p.CompletedAt)
}

func TestGatewayFailureRestoresPlatformBalance(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	ledger := wallet.NewLedger(db, testdb.PlatformWalletID())
	fundPlatform(t, ledger, 300000)
	id := insertPayout(t, db, 300000)

	gw := &lockedGateway{err: &midtrans.APIError{StatusCode: 400, Message: "invalid beneficiary account"}}
	svc := payout.NewService(payout.NewRepository(db), ledger, gw, nil, decimal.NewFromInt(100000))

	_, err := svc.Submit(ctx, uuid.New(), id)
	require.ErrorIs(t, err, payout.ErrGatewayRejected)

	balance, err := ledger.Balance(ctx, ledger.Platform())
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(300000)), balance.String())

	p, err := payout.NewRepository(db).GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusFailed, p.Status)
	require.NotNil(t, p.FailureReason)
	assert.Contains(t, *p.FailureReason, "invalid beneficiary account")
	assert.NotNil(t, p.CompletedAt)
}

func TestGatewayOutageKeepsPayoutProcessing(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	ledger := wallet.NewLedger(db, testdb.PlatformWalletID())
	fundPlatform(t, ledger, 300000)
	id := insertPayout(t, db, 300000)

	gw := &lockedGateway{err: &midtrans.APIError{StatusCode: 503, Message: "maintenance"}}
	svc := payout.NewService(payout.NewRepository(db), ledger, gw, nil, decimal.NewFromInt(100000))

	_, err := svc.Submit(ctx, uuid.New(), id)
	require.ErrorIs(t, err, payout.ErrGatewayUnconfirmed)

	balance, err := ledger.Balance(ctx, ledger.Platform())
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), balance.String())

	p, err := payout.NewRepository(db).GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusProcessing, p.Status)
	require.NotNil(t, p.FailureReason)
	assert.Contains(t, *p.FailureReason, "maintenance")
	assert.Nil(t, p.CompletedAt)
}

func TestInsufficientPlatformBalanceLeavesPayoutPending(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	ledger := wallet.NewLedger(db, testdb.PlatformWalletID())
	id := insertPayout(t, db, 150000)

	gw := &lockedGateway{}
	svc := payout.NewService(payout.NewRepository(db), ledger, gw, nil, decimal.NewFromInt(100000))

	_, err := svc.Submit(ctx, uuid.New(), id)
	require.ErrorIs(t, err, wallet.ErrInsufficientFunds)
	assert.Zero(t, gw.calls)

	p, err := payout.NewRepository(db).GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusPending, p.Status)
}

type lockedGateway struct {
	mu     sync.Mutex
	calls  int
	result *midtrans.PayoutResult
	err    error
}

func (g *lockedGateway) CreatePayout(_ context.Context, _ midtrans.PayoutItem) (*midtrans.PayoutResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.result, g.err
}
