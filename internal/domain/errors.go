package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrShopItemNotFound    = errors.New("shop item not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrLedgerEntryNotFound = errors.New("ledger entry not found")

	ErrAuthenticationRequired = errors.New("authentication required")
	ErrForbidden              = errors.New("admin access required")

	ErrInvalidID               = errors.New("id is required")
	ErrInvalidTokens           = errors.New("tokens must not be negative")
	ErrInvalidOrderStatus      = errors.New("status must be approved or rejected")
	ErrInvalidStatusTransition = errors.New("order is already in a terminal status")
	ErrInvalidBudget           = errors.New("budget must not be negative")

	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrOrderStateChanged   = errors.New("orders are no longer pending")
	ErrDuplicateSubmission = errors.New("a ledger entry already exists for this submission")
	ErrExternalService     = errors.New("external service failure")
)

// InsufficientBalanceError reports the price and balance observed under the user lock.
type InsufficientBalanceError struct {
	Required  int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %d, available %d", e.Required, e.Available)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

func (e *InsufficientBalanceError) Shortfall() int64 {
	return e.Required - e.Available
}

// IsValidationError reports whether err is caused by bad caller input.
func IsValidationError(err error) bool {
	for _, target := range []error{ErrInvalidID, ErrInvalidTokens, ErrInvalidOrderStatus, ErrInvalidStatusTransition, ErrInvalidBudget} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err is one of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrShopItemNotFound) ||
		errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrLedgerEntryNotFound)
}
