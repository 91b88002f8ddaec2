package exchange

import "errors"

// Domain errors surfaced at the request boundary
var (
	ErrValidation           = errors.New("invalid order spec")
	ErrUnknownSymbol        = errors.New("unknown symbol")
	ErrInvalidState         = errors.New("invalid order state transition")
	ErrInsufficientPosition = errors.New("insufficient shares")
	ErrNotFound             = errors.New("order not found")
)
