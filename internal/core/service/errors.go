package service

import "errors"

var (
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidChoice     = errors.New("invalid vote choice")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSupplyExceeded    = errors.New("insufficient token supply")
	ErrNotEligible       = errors.New("not eligible to vote")
	ErrNotFound          = errors.New("not found")
)
