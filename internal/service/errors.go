package service

import "errors"

// Business failures are explicit variants the caller must handle, not
// panics or far-away catches.
var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidState       = errors.New("invalid state for this operation")
	ErrInvalidTransition  = errors.New("invalid order status transition")
	ErrUnknownTransaction = errors.New("unknown transaction")
	ErrRetryExhausted     = errors.New("retry attempts exhausted")
)
