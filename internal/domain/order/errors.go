package order

import "errors"

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrNotOwner      = errors.New("order belongs to another user")
	ErrNotPayable    = errors.New("order is not awaiting payment")
)
