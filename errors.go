package credits

import (
	"errors"
	"fmt"

	"github.com/xraph/credits/policy"
	"github.com/xraph/credits/referral"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrInvalidInput  = errors.New("credits: invalid input")
	ErrInvalidConfig = errors.New("credits: invalid configuration")

	// Account errors
	ErrAccountNotFound = errors.New("credits: account not found")
	ErrAccountExists   = errors.New("credits: account already exists")

	// Policy errors
	ErrInvalidAmount       = policy.ErrInvalidAmount
	ErrInsufficientBalance = policy.ErrInsufficientBalance

	// Concurrency errors
	ErrVersionConflict = errors.New("credits: version conflict")
	ErrLedgerBusy      = errors.New("credits: ledger busy, too many concurrent writers")
	// ErrDuplicateEntry is returned by a store when an entry carrying the
	// same account and reference was already journaled.
	ErrDuplicateEntry = errors.New("credits: entry reference already applied")

	// Referral errors
	ErrInvalidReferral    = referral.ErrInvalidReferral
	ErrAlreadyRedeemed    = referral.ErrAlreadyRedeemed
	ErrRedemptionNotFound = referral.ErrRedemptionNotFound
	ErrReferralIncomplete = errors.New("credits: referral claimed but bonus not fully credited")

	// Store errors
	ErrStoreClosed     = errors.New("credits: store is closed")
	ErrMigrationFailed = errors.New("credits: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("credits: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrRedemptionNotFound)
}

// IsPolicyError returns true if a business rule rejected the request.
// Policy errors leave state untouched and are never retried.
func IsPolicyError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidReferral)
}

// IsRetryable returns true if the error is temporary and the caller may try
// the whole operation again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLedgerBusy) ||
		errors.Is(err, ErrVersionConflict)
}
