package apperrors

import (
	"errors"
)

var (
	ErrAccountNotFound = errors.New("loyalty account not found")
	ErrAmountInvalid   = errors.New("points amount is invalid")

	ErrInsufficientBalance = errors.New("insufficient points balance")

	ErrRedemptionNotFound = errors.New("redemption not found")
	ErrRedemptionExpired  = errors.New("redemption is expired")
	ErrInvalidState       = errors.New("redemption is not pending")
	ErrCodeTaken          = errors.New("redemption code already taken")

	// Storage failed in a way that is safe to retry as a whole logical
	// operation: balance mutation and log append commit together or not at all
	ErrStorageTransient = errors.New("transient storage error")
)
