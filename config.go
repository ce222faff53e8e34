package credits

import (
	"fmt"
	"time"

	"github.com/xraph/credits/policy"
)

// Config holds the tunables of a Ledger.
type Config struct {
	// InitialBalance is granted to every newly initialized account.
	InitialBalance int64 `json:"initial_balance" mapstructure:"initial_balance" yaml:"initial_balance"`
	// MaxBalance caps finite balances. Adds saturate at it.
	MaxBalance int64 `json:"max_balance" mapstructure:"max_balance" yaml:"max_balance"`
	// ReferralBonus is credited to each side of a redeemed referral.
	ReferralBonus int64 `json:"referral_bonus" mapstructure:"referral_bonus" yaml:"referral_bonus"`

	// MaxAttempts bounds the optimistic retry loop of one mutation.
	MaxAttempts int `json:"max_attempts" mapstructure:"max_attempts" yaml:"max_attempts"`
	// BaseBackoff is the first retry delay before randomization.
	BaseBackoff time.Duration `json:"base_backoff" mapstructure:"base_backoff" yaml:"base_backoff"`
	// MaxBackoff caps a single retry delay.
	MaxBackoff time.Duration `json:"max_backoff" mapstructure:"max_backoff" yaml:"max_backoff"`

	// ReconcileInterval runs the referral reconciler in the background when
	// positive. Zero disables the worker; Reconcile can still be called.
	ReconcileInterval time.Duration `json:"reconcile_interval" mapstructure:"reconcile_interval" yaml:"reconcile_interval"`
	// ReconcileGrace skips redemptions younger than this, so in-flight
	// redemptions are not double-checked.
	ReconcileGrace time.Duration `json:"reconcile_grace" mapstructure:"reconcile_grace" yaml:"reconcile_grace"`
	// ReconcileBatchSize is the page size used when scanning redemptions.
	ReconcileBatchSize int `json:"reconcile_batch_size" mapstructure:"reconcile_batch_size" yaml:"reconcile_batch_size"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		InitialBalance:     policy.DefaultInitialBalance,
		MaxBalance:         policy.DefaultMaxBalance,
		ReferralBonus:      policy.DefaultReferralBonus,
		MaxAttempts:        5,
		BaseBackoff:        10 * time.Millisecond,
		MaxBackoff:         250 * time.Millisecond,
		ReconcileGrace:     5 * time.Minute,
		ReconcileBatchSize: 100,
	}
}

// Policy returns the balance rules described by c.
func (c Config) Policy() policy.Policy {
	return policy.Policy{
		InitialBalance: c.InitialBalance,
		MaxBalance:     c.MaxBalance,
		ReferralBonus:  c.ReferralBonus,
	}
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	if err := c.Policy().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch {
	case c.MaxAttempts < 1:
		return fmt.Errorf("%w: max attempts %d must be at least 1", ErrInvalidConfig, c.MaxAttempts)
	case c.BaseBackoff < 0 || c.MaxBackoff < 0:
		return fmt.Errorf("%w: backoff durations must not be negative", ErrInvalidConfig)
	case c.MaxBackoff > 0 && c.BaseBackoff > c.MaxBackoff:
		return fmt.Errorf("%w: base backoff %s exceeds max backoff %s", ErrInvalidConfig, c.BaseBackoff, c.MaxBackoff)
	case c.ReconcileInterval < 0 || c.ReconcileGrace < 0:
		return fmt.Errorf("%w: reconcile durations must not be negative", ErrInvalidConfig)
	case c.ReconcileBatchSize < 1:
		return fmt.Errorf("%w: reconcile batch size %d must be at least 1", ErrInvalidConfig, c.ReconcileBatchSize)
	}
	return nil
}
