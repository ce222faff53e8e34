// Package extension provides the Forge extension adapter for Credits.
//
// It implements the forge.Extension interface to integrate the credit
// ledger into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.credits" or "credits" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/credits"
	"github.com/xraph/credits/observability"
	"github.com/xraph/credits/referral"
	"github.com/xraph/credits/store"
	"github.com/xraph/credits/store/memory"
	redisstore "github.com/xraph/credits/store/redis"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "credits"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Per-account usage credit ledger with referral bonuses"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the credit ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *credits.Ledger
	store      store.Store
	referrals  referral.Store
	redis      *redisstore.Store
	ledgerOpts []credits.Option
}

// New creates a new Credits Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *credits.Ledger { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the credits engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	if e.referrals == nil && e.config.RedisAddr != "" {
		var opts []redisstore.Option
		if e.config.RedisPrefix != "" {
			opts = append(opts, redisstore.WithPrefix(e.config.RedisPrefix))
		}
		e.redis = redisstore.New(redis.NewClient(&redis.Options{Addr: e.config.RedisAddr}), opts...)
		e.referrals = e.redis
	}

	e.engine = credits.New(e.store, e.buildLedgerOpts()...)

	return vessel.Provide(fapp.Container(), func() (*credits.Ledger, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("credits: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	var errs []error
	if e.engine != nil {
		errs = append(errs, e.engine.Stop())
	}
	if e.redis != nil {
		errs = append(errs, e.redis.Close())
	}
	e.MarkStopped()
	return errors.Join(errs...)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("credits: store not initialized")
	}
	if err := e.store.Ping(ctx); err != nil {
		return err
	}
	if e.redis != nil {
		return e.redis.Ping(ctx)
	}
	return nil
}

// buildLedgerOpts constructs credits.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() []credits.Option {
	opts := make([]credits.Option, 0, len(e.ledgerOpts)+4)

	opts = append(opts, credits.WithConfig(e.config.ledgerConfig()))

	if e.config.DisableMigrate {
		opts = append(opts, credits.WithoutMigrate())
	}
	if e.referrals != nil {
		opts = append(opts, credits.WithReferralStore(e.referrals))
	}
	if e.config.EnableMetrics {
		opts = append(opts, credits.WithPlugin(
			observability.NewMetricsExtension(observability.NewPrometheusFactory(nil)),
		))
	}

	// Append any pass-through credits options.
	opts = append(opts, e.ledgerOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("credits: configuration is required but not found in config files; " +
				"ensure 'extensions.credits' or 'credits' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("credits: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("initial_balance", e.config.InitialBalance),
		forge.F("max_balance", e.config.MaxBalance),
		forge.F("referral_bonus", e.config.ReferralBonus),
		forge.F("max_attempts", e.config.MaxAttempts),
		forge.F("reconcile_interval", e.config.ReconcileInterval),
		forge.F("redis", e.config.RedisAddr != ""),
		forge.F("metrics", e.config.EnableMetrics),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	src := configSource{
		isSet: func(key string) bool { return cm.IsSet(key) },
		bind:  func(key string, target any) error { return cm.Bind(key, target) },
	}

	for _, key := range []string{"extensions.credits", "credits"} {
		cfg, found, err := src.load(key)
		if !found {
			continue
		}
		if err == nil {
			e.Logger().Debug("credits: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("credits: failed to bind config",
			forge.F("key", key),
			forge.F("error", err.Error()),
		)
	}

	return Config{}, false
}

// configSource is the part of the config manager the extension reads.
type configSource struct {
	isSet func(key string) bool
	bind  func(key string, target any) error
}

// load binds the section under key and marks the balance fields it sets.
// found is false when the section is absent.
func (src configSource) load(key string) (cfg Config, found bool, err error) {
	if !src.isSet(key) {
		return Config{}, false, nil
	}
	if bindErr := src.bind(key, &cfg); bindErr != nil {
		return Config{}, true, fmt.Errorf("credits: bind %s: %w", key, bindErr)
	}
	for field, name := range balanceKeys {
		if src.isSet(key + "." + name) {
			cfg.explicit |= field
		}
	}
	return cfg, true, nil
}

// balanceKeys maps balance fields to their config keys.
var balanceKeys = map[balanceField]string{
	fieldInitialBalance: "initial_balance",
	fieldMaxBalance:     "max_balance",
	fieldReferralBonus:  "referral_bonus",
}

// mergeWithDefaults fills zero-valued fields with defaults. Balance fields
// marked explicit keep their zero.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.InitialBalance == 0 && !cfg.explicit.has(fieldInitialBalance) {
		cfg.InitialBalance = defaults.InitialBalance
	}
	if cfg.MaxBalance == 0 && !cfg.explicit.has(fieldMaxBalance) {
		cfg.MaxBalance = defaults.MaxBalance
	}
	if cfg.ReferralBonus == 0 && !cfg.explicit.has(fieldReferralBonus) {
		cfg.ReferralBonus = defaults.ReferralBonus
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.BaseBackoff == 0 {
		cfg.BaseBackoff = defaults.BaseBackoff
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = defaults.MaxBackoff
	}
	if cfg.ReconcileGrace == 0 {
		cfg.ReconcileGrace = defaults.ReconcileGrace
	}
	if cfg.ReconcileBatchSize == 0 {
		cfg.ReconcileBatchSize = defaults.ReconcileBatchSize
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.EnableMetrics {
		yamlConfig.EnableMetrics = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.RedisAddr == "" {
		yamlConfig.RedisAddr = programmaticConfig.RedisAddr
	}
	if yamlConfig.RedisPrefix == "" {
		yamlConfig.RedisPrefix = programmaticConfig.RedisPrefix
	}

	// Numeric fields: YAML takes precedence, programmatic fills gaps.
	for _, b := range []struct {
		field    balanceField
		yaml     *int64
		fromCode int64
	}{
		{fieldInitialBalance, &yamlConfig.InitialBalance, programmaticConfig.InitialBalance},
		{fieldMaxBalance, &yamlConfig.MaxBalance, programmaticConfig.MaxBalance},
		{fieldReferralBonus, &yamlConfig.ReferralBonus, programmaticConfig.ReferralBonus},
	} {
		if *b.yaml == 0 && !yamlConfig.explicit.has(b.field) {
			*b.yaml = b.fromCode
			yamlConfig.explicit |= programmaticConfig.explicit & b.field
		}
	}
	if yamlConfig.MaxAttempts == 0 {
		yamlConfig.MaxAttempts = programmaticConfig.MaxAttempts
	}
	if yamlConfig.BaseBackoff == 0 {
		yamlConfig.BaseBackoff = programmaticConfig.BaseBackoff
	}
	if yamlConfig.MaxBackoff == 0 {
		yamlConfig.MaxBackoff = programmaticConfig.MaxBackoff
	}
	if yamlConfig.ReconcileInterval == 0 {
		yamlConfig.ReconcileInterval = programmaticConfig.ReconcileInterval
	}
	if yamlConfig.ReconcileGrace == 0 {
		yamlConfig.ReconcileGrace = programmaticConfig.ReconcileGrace
	}
	if yamlConfig.ReconcileBatchSize == 0 {
		yamlConfig.ReconcileBatchSize = programmaticConfig.ReconcileBatchSize
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
