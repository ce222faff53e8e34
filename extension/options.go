package extension

import (
	"time"

	"github.com/xraph/credits"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/referral"
	"github.com/xraph/credits/store"
)

// Option configures the Credits Forge extension.
type Option func(*Extension)

// WithStore sets the store for the credits engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithReferralStore keeps redemptions in rs instead of the main store.
// It takes precedence over Config.RedisAddr.
func WithReferralStore(rs referral.Store) Option {
	return func(e *Extension) {
		e.referrals = rs
	}
}

// WithLedgerOption passes a credits.Option through to the underlying engine.
func WithLedgerOption(opt credits.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a credits plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, credits.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithBalances sets the initial balance, the cap and the referral bonus.
// Zero values are kept rather than replaced by defaults.
func WithBalances(initial, maxBalance, bonus int64) Option {
	return func(e *Extension) {
		e.config.InitialBalance = initial
		e.config.MaxBalance = maxBalance
		e.config.ReferralBonus = bonus
		e.config.explicit |= fieldInitialBalance | fieldMaxBalance | fieldReferralBonus
	}
}

// WithRetry configures the optimistic retry loop.
func WithRetry(maxAttempts int, base, maxDelay time.Duration) Option {
	return func(e *Extension) {
		e.config.MaxAttempts = maxAttempts
		e.config.BaseBackoff = base
		e.config.MaxBackoff = maxDelay
	}
}

// WithReconcileInterval enables the background referral reconciler.
func WithReconcileInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.ReconcileInterval = d }
}

// WithRedis keeps redemptions in the Redis server at addr.
func WithRedis(addr string) Option {
	return func(e *Extension) { e.config.RedisAddr = addr }
}

// WithMetrics registers the Prometheus metrics plugin.
func WithMetrics() Option {
	return func(e *Extension) { e.config.EnableMetrics = true }
}
