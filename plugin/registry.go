package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/entry"
	"github.com/xraph/credits/referral"
)

// DefaultHookTimeout bounds a single hook invocation.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration and cached per
// interface.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit               []OnInit
	onShutdown           []OnShutdown
	onAccountInitialized []OnAccountInitialized
	onBalanceChanged     []OnBalanceChanged
	onDeductRejected     []OnDeductRejected
	onUnlimitedChanged   []OnUnlimitedChanged
	onConflictRetry      []OnConflictRetry
	onLedgerBusy         []OnLedgerBusy
	onReferralRedeemed   []OnReferralRedeemed
	onReferralDuplicate  []OnReferralDuplicate
	onReferralIncomplete []OnReferralIncomplete
	onReferralRepaired   []OnReferralRepaired
	onReconciled         []OnReconciled
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var hooks []string
	cache := func(ok bool, name string, add func()) {
		if ok {
			add()
			hooks = append(hooks, name)
		}
	}

	v1, ok := p.(OnInit)
	cache(ok, "OnInit", func() { r.onInit = append(r.onInit, v1) })
	v2, ok := p.(OnShutdown)
	cache(ok, "OnShutdown", func() { r.onShutdown = append(r.onShutdown, v2) })
	v3, ok := p.(OnAccountInitialized)
	cache(ok, "OnAccountInitialized", func() { r.onAccountInitialized = append(r.onAccountInitialized, v3) })
	v4, ok := p.(OnBalanceChanged)
	cache(ok, "OnBalanceChanged", func() { r.onBalanceChanged = append(r.onBalanceChanged, v4) })
	v5, ok := p.(OnDeductRejected)
	cache(ok, "OnDeductRejected", func() { r.onDeductRejected = append(r.onDeductRejected, v5) })
	v6, ok := p.(OnUnlimitedChanged)
	cache(ok, "OnUnlimitedChanged", func() { r.onUnlimitedChanged = append(r.onUnlimitedChanged, v6) })
	v7, ok := p.(OnConflictRetry)
	cache(ok, "OnConflictRetry", func() { r.onConflictRetry = append(r.onConflictRetry, v7) })
	v8, ok := p.(OnLedgerBusy)
	cache(ok, "OnLedgerBusy", func() { r.onLedgerBusy = append(r.onLedgerBusy, v8) })
	v9, ok := p.(OnReferralRedeemed)
	cache(ok, "OnReferralRedeemed", func() { r.onReferralRedeemed = append(r.onReferralRedeemed, v9) })
	v10, ok := p.(OnReferralDuplicate)
	cache(ok, "OnReferralDuplicate", func() { r.onReferralDuplicate = append(r.onReferralDuplicate, v10) })
	v11, ok := p.(OnReferralIncomplete)
	cache(ok, "OnReferralIncomplete", func() { r.onReferralIncomplete = append(r.onReferralIncomplete, v11) })
	v12, ok := p.(OnReferralRepaired)
	cache(ok, "OnReferralRepaired", func() { r.onReferralRepaired = append(r.onReferralRepaired, v12) })
	v13, ok := p.(OnReconciled)
	cache(ok, "OnReconciled", func() { r.onReconciled = append(r.onReconciled, v13) })

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"hooks", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, ledger any) {
	emit(ctx, r, "OnInit", &r.onInit, func(p OnInit) error {
		return p.OnInit(ctx, ledger)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", &r.onShutdown, func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitAccountInitialized emits an account initialized event.
func (r *Registry) EmitAccountInitialized(ctx context.Context, a *account.Account) {
	emit(ctx, r, "OnAccountInitialized", &r.onAccountInitialized, func(p OnAccountInitialized) error {
		return p.OnAccountInitialized(ctx, a.Clone())
	})
}

// EmitBalanceChanged emits a committed balance mutation.
func (r *Registry) EmitBalanceChanged(ctx context.Context, a *account.Account, e *entry.Entry) {
	emit(ctx, r, "OnBalanceChanged", &r.onBalanceChanged, func(p OnBalanceChanged) error {
		c := *e
		return p.OnBalanceChanged(ctx, a.Clone(), &c)
	})
}

// EmitDeductRejected emits a policy rejection of a deduction.
func (r *Registry) EmitDeductRejected(ctx context.Context, accountID string, amount int64, reason error) {
	emit(ctx, r, "OnDeductRejected", &r.onDeductRejected, func(p OnDeductRejected) error {
		return p.OnDeductRejected(ctx, accountID, amount, reason)
	})
}

// EmitUnlimitedChanged emits an unlimited flag change.
func (r *Registry) EmitUnlimitedChanged(ctx context.Context, a *account.Account) {
	emit(ctx, r, "OnUnlimitedChanged", &r.onUnlimitedChanged, func(p OnUnlimitedChanged) error {
		return p.OnUnlimitedChanged(ctx, a.Clone())
	})
}

// EmitConflictRetry emits a lost optimistic write.
func (r *Registry) EmitConflictRetry(ctx context.Context, accountID string, attempt int, wait time.Duration) {
	emit(ctx, r, "OnConflictRetry", &r.onConflictRetry, func(p OnConflictRetry) error {
		return p.OnConflictRetry(ctx, accountID, attempt, wait)
	})
}

// EmitLedgerBusy emits retry exhaustion.
func (r *Registry) EmitLedgerBusy(ctx context.Context, accountID string, attempts int) {
	emit(ctx, r, "OnLedgerBusy", &r.onLedgerBusy, func(p OnLedgerBusy) error {
		return p.OnLedgerBusy(ctx, accountID, attempts)
	})
}

// EmitReferralRedeemed emits a fully credited referral.
func (r *Registry) EmitReferralRedeemed(ctx context.Context, red *referral.Redemption) {
	emit(ctx, r, "OnReferralRedeemed", &r.onReferralRedeemed, func(p OnReferralRedeemed) error {
		c := *red
		return p.OnReferralRedeemed(ctx, &c)
	})
}

// EmitReferralDuplicate emits a repeated invitation key.
func (r *Registry) EmitReferralDuplicate(ctx context.Context, invitationKey string) {
	emit(ctx, r, "OnReferralDuplicate", &r.onReferralDuplicate, func(p OnReferralDuplicate) error {
		return p.OnReferralDuplicate(ctx, invitationKey)
	})
}

// EmitReferralIncomplete emits a claimed but partially credited referral.
func (r *Registry) EmitReferralIncomplete(ctx context.Context, red *referral.Redemption, cause error) {
	emit(ctx, r, "OnReferralIncomplete", &r.onReferralIncomplete, func(p OnReferralIncomplete) error {
		c := *red
		return p.OnReferralIncomplete(ctx, &c, cause)
	})
}

// EmitReferralRepaired emits a bonus credited by reconciliation.
func (r *Registry) EmitReferralRepaired(ctx context.Context, red *referral.Redemption, accountID string) {
	emit(ctx, r, "OnReferralRepaired", &r.onReferralRepaired, func(p OnReferralRepaired) error {
		c := *red
		return p.OnReferralRepaired(ctx, &c, accountID)
	})
}

// EmitReconciled emits the outcome of a reconciliation pass.
func (r *Registry) EmitReconciled(ctx context.Context, scanned, repaired, failed int, elapsed time.Duration) {
	emit(ctx, r, "OnReconciled", &r.onReconciled, func(p OnReconciled) error {
		return p.OnReconciled(ctx, scanned, repaired, failed, elapsed)
	})
}

// emit snapshots the cached hook list under the read lock and calls each
// hook with a timeout. Hook failures are logged and never reach the caller.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, list *[]T, call func(T) error) {
	r.mu.RLock()
	plugins := *list
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return call(p)
		}); err != nil {
			r.logger.Warn("plugin hook failed",
				"hook", hook,
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the ledger.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
