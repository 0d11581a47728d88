// Package payout submits admin-requested bank transfers from the platform
// wallet through the Iris payout API.
package payout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/sidrive/sidrive-api/internal/domain/wallet"
	"github.com/sidrive/sidrive-api/internal/pkg/events"
	"github.com/sidrive/sidrive-api/internal/pkg/logger"
	"github.com/sidrive/sidrive-api/internal/pkg/midtrans"
	"github.com/sidrive/sidrive-api/internal/pkg/validator"
)

type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Payout, error)
	MarkProcessing(ctx context.Context, id uuid.UUID, within TxFunc) (bool, error)
	Resolve(ctx context.Context, id uuid.UUID, res Resolution, within TxFunc) (bool, error)
}

type Ledger interface {
	ApplyTx(ctx context.Context, tx *sqlx.Tx, m wallet.Mutation) (wallet.Result, error)
	Platform() wallet.Account
}

type Gateway interface {
	CreatePayout(ctx context.Context, item midtrans.PayoutItem) (*midtrans.PayoutResult, error)
}

type Emitter interface {
	Emit(evt events.PaymentEvent)
}

type Service struct {
	store     Store
	ledger    Ledger
	gateway   Gateway
	emitter   Emitter
	minAmount decimal.Decimal
}

// NewService creates a payout service. emitter may be nil.
func NewService(store Store, ledger Ledger, gateway Gateway, emitter Emitter, minAmount decimal.Decimal) *Service {
	return &Service{store: store, ledger: ledger, gateway: gateway, emitter: emitter, minAmount: minAmount}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Payout, error) {
	return s.store.GetByID(ctx, id)
}

// Submit debits the platform wallet and sends a pending payout to the
// gateway. Only a definitive gateway rejection fails the payout and reverses
// the debit. When the outcome is unknown the payout stays processing with the
// debit kept and the error recorded.
func (s *Service) Submit(ctx context.Context, adminID, id uuid.UUID) (*Payout, error) {
	log := logger.FromContext(ctx)

	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusPending {
		return nil, ErrNotPending
	}
	if p.Amount.LessThan(s.minAmount) {
		return nil, fmt.Errorf("%w: minimum is %s", ErrBelowMinimum, s.minAmount.String())
	}
	if err := validator.ValidateVar(p.BankCode, "bank_code"); err != nil || p.AccountNumber == "" || p.AccountHolderName == "" {
		return nil, ErrInvalidBankDetails
	}

	won, err := s.store.MarkProcessing(ctx, p.ID, func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := s.ledger.ApplyTx(ctx, tx, s.mutation(p, adminID, wallet.Debit, wallet.CategoryPayout,
			fmt.Sprintf("Payout to %s %s", p.BankCode, p.MaskedAccount())))
		return err
	})
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrNotPending
	}

	// Once the debit is committed a dropped admin connection must not abort
	// the transfer or the recording of its result.
	detached := context.WithoutCancel(ctx)

	result, gwErr := s.gateway.CreatePayout(detached, midtrans.PayoutItem{
		BeneficiaryName:    p.AccountHolderName,
		BeneficiaryAccount: p.AccountNumber,
		BeneficiaryBank:    p.BankCode,
		Amount:             p.Amount,
		Notes:              payoutNotes(p),
	})

	res := Resolution{}
	switch {
	case gwErr == nil:
		res.Status = StatusFromGateway(result.Status)
		res.ReferenceNo = result.ReferenceNo
		res.GatewayResponse, _ = json.Marshal(result)
		if res.Status == StatusFailed {
			res.FailureReason = "rejected by gateway: " + result.Status
		}
	case midtrans.IsRejection(gwErr):
		res.Status = StatusFailed
		res.FailureReason = gwErr.Error()
	default:
		res.Status = StatusProcessing
		res.FailureReason = "gateway result unknown: " + gwErr.Error()
	}

	var within TxFunc
	if res.Status == StatusFailed {
		within = func(ctx context.Context, tx *sqlx.Tx) error {
			_, err := s.ledger.ApplyTx(ctx, tx, s.mutation(p, adminID, wallet.Credit, wallet.CategoryPayoutReversal,
				"Payout reversal - "+res.FailureReason))
			return err
		}
	}

	if _, err := s.store.Resolve(detached, p.ID, res, within); err != nil {
		log.Error().Err(err).Str("payout_id", p.ID.String()).Str("status", string(res.Status)).Msg("Failed to record payout result")
		return nil, err
	}

	evt := log.Info()
	if gwErr != nil {
		evt = log.Warn().Err(gwErr)
	}
	evt.
		Str("payout_id", p.ID.String()).
		Str("admin_id", adminID.String()).
		Str("amount", p.Amount.String()).
		Str("account", p.MaskedAccount()).
		Str("status", string(res.Status)).
		Str("reference_no", res.ReferenceNo).
		Msg("Payout submitted")
	s.emit(p, res.Status)

	switch {
	case gwErr == nil:
		return s.store.GetByID(ctx, p.ID)
	case res.Status == StatusFailed:
		return nil, fmt.Errorf("%w: %w", ErrGatewayRejected, gwErr)
	default:
		return nil, fmt.Errorf("%w: %w", ErrGatewayUnconfirmed, gwErr)
	}
}

func (s *Service) mutation(p *Payout, adminID uuid.UUID, dir wallet.Direction, category wallet.Category, description string) wallet.Mutation {
	return wallet.Mutation{
		Account:     s.ledger.Platform(),
		Amount:      p.Amount,
		Direction:   dir,
		Category:    category,
		ReferenceID: p.ID.String(),
		Description: description,
		Metadata: wallet.Metadata{
			"payout_id": p.ID.String(),
			"admin_id":  adminID.String(),
		},
	}
}

func (s *Service) emit(p *Payout, status Status) {
	if s.emitter == nil {
		return
	}
	evt := events.NewPaymentEvent(events.TypePayoutUpdated, p.ID.String(), "payout", p.Amount)
	evt.Status = string(status)
	evt.AccountID = s.ledger.Platform().ID
	s.emitter.Emit(evt)
}

func payoutNotes(p *Payout) string {
	if p.Notes != "" {
		return p.Notes
	}
	return "Platform payout " + p.ID.String()[:8]
}
