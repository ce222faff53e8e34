package extension

import (
	"time"

	"github.com/xraph/credits"
)

// Config holds the Credits extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.credits" or "credits" keys).
// Zero numeric fields fall back to DefaultConfig, except balance fields set
// explicitly in YAML or through WithBalances, where zero is kept.
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// InitialBalance is granted to each newly initialized account (default: 500).
	InitialBalance int64 `json:"initial_balance" mapstructure:"initial_balance" yaml:"initial_balance"`

	// MaxBalance caps finite balances (default: 500).
	MaxBalance int64 `json:"max_balance" mapstructure:"max_balance" yaml:"max_balance"`

	// ReferralBonus is credited to both sides of a redeemed referral (default: 50).
	ReferralBonus int64 `json:"referral_bonus" mapstructure:"referral_bonus" yaml:"referral_bonus"`

	// MaxAttempts bounds the optimistic retry loop of a single mutation.
	MaxAttempts int `json:"max_attempts" mapstructure:"max_attempts" yaml:"max_attempts"`

	// BaseBackoff and MaxBackoff shape the jittered retry delay.
	BaseBackoff time.Duration `json:"base_backoff" mapstructure:"base_backoff" yaml:"base_backoff"`
	MaxBackoff  time.Duration `json:"max_backoff" mapstructure:"max_backoff" yaml:"max_backoff"`

	// ReconcileInterval enables the background referral reconciler when positive.
	ReconcileInterval time.Duration `json:"reconcile_interval" mapstructure:"reconcile_interval" yaml:"reconcile_interval"`

	// ReconcileGrace skips redemptions younger than this (default: 5m).
	ReconcileGrace time.Duration `json:"reconcile_grace" mapstructure:"reconcile_grace" yaml:"reconcile_grace"`

	// ReconcileBatchSize is the page size of a reconcile scan (default: 100).
	ReconcileBatchSize int `json:"reconcile_batch_size" mapstructure:"reconcile_batch_size" yaml:"reconcile_batch_size"`

	// RedisAddr, when set, keeps referral redemptions in Redis instead of
	// the main store.
	RedisAddr string `json:"redis_addr" mapstructure:"redis_addr" yaml:"redis_addr"`

	// RedisPrefix namespaces the Redis keys (default: "credits:").
	RedisPrefix string `json:"redis_prefix" mapstructure:"redis_prefix" yaml:"redis_prefix"`

	// EnableMetrics registers the Prometheus metrics plugin.
	EnableMetrics bool `json:"enable_metrics" mapstructure:"enable_metrics" yaml:"enable_metrics"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`

	// explicit marks balance fields whose zero value was asked for.
	explicit balanceField
}

// balanceField is a set of balance settings.
type balanceField uint8

const (
	fieldInitialBalance balanceField = 1 << iota
	fieldMaxBalance
	fieldReferralBonus
)

func (f balanceField) has(field balanceField) bool { return f&field != 0 }

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	d := credits.DefaultConfig()
	return Config{
		InitialBalance:     d.InitialBalance,
		MaxBalance:         d.MaxBalance,
		ReferralBonus:      d.ReferralBonus,
		MaxAttempts:        d.MaxAttempts,
		BaseBackoff:        d.BaseBackoff,
		MaxBackoff:         d.MaxBackoff,
		ReconcileGrace:     d.ReconcileGrace,
		ReconcileBatchSize: d.ReconcileBatchSize,
	}
}

// ledgerConfig converts c into the engine configuration.
func (c Config) ledgerConfig() credits.Config {
	return credits.Config{
		InitialBalance:     c.InitialBalance,
		MaxBalance:         c.MaxBalance,
		ReferralBonus:      c.ReferralBonus,
		MaxAttempts:        c.MaxAttempts,
		BaseBackoff:        c.BaseBackoff,
		MaxBackoff:         c.MaxBackoff,
		ReconcileInterval:  c.ReconcileInterval,
		ReconcileGrace:     c.ReconcileGrace,
		ReconcileBatchSize: c.ReconcileBatchSize,
	}
}
