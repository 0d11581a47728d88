package payout

import "errors"

var (
	ErrPayoutNotFound     = errors.New("payout not found")
	ErrNotPending         = errors.New("payout is not pending")
	ErrBelowMinimum       = errors.New("payout amount is below the minimum")
	ErrInvalidBankDetails = errors.New("invalid payout bank details")
	ErrGatewayRejected    = errors.New("payout rejected by gateway")
	ErrGatewayUnconfirmed = errors.New("payout gateway result unknown")
)
