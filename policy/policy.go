// Package policy holds the business rules for credit balances.
//
// Every function here is pure: it takes an account snapshot and returns the
// next snapshot or a rule violation. Nothing touches storage, so the same
// rules run unchanged inside every retry of an optimistic transaction.
package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/types"
)

// Rule violations. A mutation rejected with one of these is never retried.
var (
	ErrInvalidAmount       = errors.New("credits: amount must be a positive integer")
	ErrInsufficientBalance = errors.New("credits: insufficient balance")
	ErrInvalidPolicy       = errors.New("credits: invalid policy")
)

// Default balance configuration.
const (
	DefaultInitialBalance int64 = 500
	DefaultMaxBalance     int64 = 500
	DefaultReferralBonus  int64 = 50
)

// Policy is the balance configuration the rules are evaluated against.
type Policy struct {
	InitialBalance int64 `json:"initial_balance"`
	MaxBalance     int64 `json:"max_balance"`
	ReferralBonus  int64 `json:"referral_bonus"`
}

// Default returns the stock policy: 500 credits to start, capped at 500,
// 50 credits per referral side.
func Default() Policy {
	return Policy{
		InitialBalance: DefaultInitialBalance,
		MaxBalance:     DefaultMaxBalance,
		ReferralBonus:  DefaultReferralBonus,
	}
}

// Validate checks that the configuration can hold its own invariants.
func (p Policy) Validate() error {
	switch {
	case p.MaxBalance < 0:
		return fmt.Errorf("%w: max balance %d is negative", ErrInvalidPolicy, p.MaxBalance)
	case p.InitialBalance < 0:
		return fmt.Errorf("%w: initial balance %d is negative", ErrInvalidPolicy, p.InitialBalance)
	case p.InitialBalance > p.MaxBalance:
		return fmt.Errorf("%w: initial balance %d exceeds max balance %d", ErrInvalidPolicy, p.InitialBalance, p.MaxBalance)
	case p.ReferralBonus <= 0:
		return fmt.Errorf("%w: referral bonus %d must be positive", ErrInvalidPolicy, p.ReferralBonus)
	}
	return nil
}

// ValidateAmount rejects zero and negative amounts.
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	return nil
}

// NewAccount returns the record a freshly initialized account starts from.
func (p Policy) NewAccount(accountID string, now time.Time) account.Account {
	return account.Account{
		Entity:  types.EntityAt(now),
		ID:      accountID,
		Balance: p.InitialBalance,
	}
}

// Deduct charges amount against a. Unlimited accounts are returned unchanged.
func (p Policy) Deduct(a account.Account, amount int64) (account.Account, error) {
	if err := ValidateAmount(amount); err != nil {
		return a, err
	}
	if a.Unlimited {
		return a, nil
	}
	if a.Balance < amount {
		return a, fmt.Errorf("%w: balance %d, requested %d", ErrInsufficientBalance, a.Balance, amount)
	}
	a.Balance -= amount
	return a, nil
}

// Add credits amount to a, saturating at MaxBalance. Unlimited accounts are
// returned unchanged.
func (p Policy) Add(a account.Account, amount int64) (account.Account, error) {
	if err := ValidateAmount(amount); err != nil {
		return a, err
	}
	if a.Unlimited {
		return a, nil
	}
	// Compare against the headroom rather than summing, so a huge amount
	// cannot overflow int64.
	if amount >= p.MaxBalance-a.Balance {
		a.Balance = max(p.MaxBalance, a.Balance)
	} else {
		a.Balance += amount
	}
	return a, nil
}

// SetUnlimited flips the unlimited flag. The stored balance is untouched.
func (p Policy) SetUnlimited(a account.Account, value bool) (account.Account, error) {
	a.Unlimited = value
	return a, nil
}

// Bonus returns the amount credited to each party of a referral.
func (p Policy) Bonus() int64 {
	return p.ReferralBonus
}
