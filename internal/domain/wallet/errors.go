package wallet

import "errors"

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidAccount     = errors.New("invalid account")
	ErrInsufficientFunds  = errors.New("insufficient wallet balance")
	ErrDuplicateReference = errors.New("duplicate reference")
	ErrReferenceConflict  = errors.New("reference conflicts with different amount")
	ErrAccountNotFound    = errors.New("account not found")
	ErrEntryNotFound      = errors.New("ledger entry not found")
	ErrAlreadySettled     = errors.New("ledger entry already settled")
)
