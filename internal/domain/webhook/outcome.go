package webhook

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sidrive/sidrive-api/internal/pkg/events"
)

// OutcomeKind is the closed set of results a notification can produce.
type OutcomeKind string

const (
	OutcomeApplied          OutcomeKind = "applied"
	OutcomePaymentFailed    OutcomeKind = "payment_failed"
	OutcomeAlreadyProcessed OutcomeKind = "already_processed"
	OutcomeNotFound         OutcomeKind = "record_not_found"
	OutcomePending          OutcomeKind = "pending"
	OutcomeNotFinal         OutcomeKind = "not_final"
	OutcomeUnrecognized     OutcomeKind = "unrecognized_status"
	OutcomeLedgerFailed     OutcomeKind = "ledger_mutation_failed"
	OutcomeInvalidSignature OutcomeKind = "invalid_signature"
	OutcomeError            OutcomeKind = "error"
)

var (
	// ErrLedgerMutationFailed marks errors raised by the balance mutator.
	// No state was changed, so the gateway may safely retry.
	ErrLedgerMutationFailed = errors.New("ledger mutation failed")
	// ErrInvalidSignature is returned when no canonicalization rule matches.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrMalformedNotification covers bodies that cannot be decoded or validated.
	ErrMalformedNotification = errors.New("malformed notification")
)

// Outcome describes what a flow handler did with an event.
type Outcome struct {
	Kind      OutcomeKind
	Flow      Flow
	OrderID   string
	Message   string
	NewStatus string

	// Credited and BalanceAfter are set when a balance was credited.
	Credited     *decimal.Decimal
	BalanceAfter *decimal.Decimal
	AccountID    string

	// EventType is published once the handler returns; empty means nothing changed.
	EventType events.Type
	Err       error
}

// Changed reports whether the outcome represents a committed state change.
func (o Outcome) Changed() bool {
	return o.Kind == OutcomeApplied || o.Kind == OutcomePaymentFailed
}

func Applied(message string) Outcome {
	return Outcome{Kind: OutcomeApplied, Message: message}
}

func AlreadyProcessed() Outcome {
	return Outcome{Kind: OutcomeAlreadyProcessed, Message: "Already processed"}
}

func NotFound(message string) Outcome {
	return Outcome{Kind: OutcomeNotFound, Message: message}
}

func Pending() Outcome {
	return Outcome{Kind: OutcomePending, Message: "Pending"}
}

func NotFinal(message string) Outcome {
	return Outcome{Kind: OutcomeNotFinal, Message: message}
}

func Unrecognized() Outcome {
	return Outcome{Kind: OutcomeUnrecognized, Message: "Unknown status"}
}

// PaymentFailed records a committed failure transition.
func PaymentFailed(newStatus string) Outcome {
	return Outcome{Kind: OutcomePaymentFailed, Message: "Payment failed", NewStatus: newStatus}
}

// LedgerFailed reports a balance mutation that did not commit. Nothing was
// changed, so the notification can be retried.
func LedgerFailed(message string, err error) Outcome {
	return Outcome{Kind: OutcomeLedgerFailed, Message: message, Err: fmt.Errorf("%w: %w", ErrLedgerMutationFailed, err)}
}

func amountPtr(d decimal.Decimal) *decimal.Decimal { return &d }

// WithCredit records the credited amount and resulting balance.
func (o Outcome) WithCredit(amount decimal.Decimal, balanceAfter *decimal.Decimal) Outcome {
	o.Credited = amountPtr(amount)
	o.BalanceAfter = balanceAfter
	return o
}
