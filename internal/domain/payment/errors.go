package payment

import "errors"

var (
	ErrFractionalAmount = errors.New("amount must be a whole number of rupiah")
	ErrDriverNotFound   = errors.New("driver not found")
	ErrNotDriverOwner   = errors.New("driver profile belongs to another user")
	ErrReservedOrderID  = errors.New("order id uses a top-up or settlement prefix")
)
