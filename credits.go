package credits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/entry"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/policy"
	"github.com/xraph/credits/referral"
	"github.com/xraph/credits/store"
	"github.com/xraph/credits/types"
)

// Ledger is the credit ledger facade. All methods are safe for concurrent
// use by many goroutines and many processes sharing one store.
type Ledger struct {
	store     store.Store
	referrals referral.Store
	guard     *referral.Guard
	plugins   *plugin.Registry
	logger    *slog.Logger
	config    Config
	policy    policy.Policy
	now       func() time.Time
	noMigrate bool
	configErr error

	// Background workers
	stopChan chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a new Ledger over s. Redemptions are kept in s unless
// WithReferralStore points them elsewhere. An invalid configuration is
// returned by Start and by every operation that writes.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    s,
		plugins:  plugin.NewRegistry(),
		logger:   slog.Default(),
		config:   DefaultConfig(),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.referrals == nil {
		l.referrals = s
	}
	l.policy = l.config.Policy()
	l.configErr = l.config.Validate()
	l.guard = referral.NewGuard(l.referrals, l.now)

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(l *Ledger) {
		l.config = cfg
	}
}

// WithInitialBalance sets the balance granted on initialization.
func WithInitialBalance(n int64) Option {
	return func(l *Ledger) {
		l.config.InitialBalance = n
	}
}

// WithMaxBalance sets the balance cap.
func WithMaxBalance(n int64) Option {
	return func(l *Ledger) {
		l.config.MaxBalance = n
	}
}

// WithReferralBonus sets the per-party referral bonus.
func WithReferralBonus(n int64) Option {
	return func(l *Ledger) {
		l.config.ReferralBonus = n
	}
}

// WithRetry configures the optimistic retry loop.
func WithRetry(maxAttempts int, base, maxDelay time.Duration) Option {
	return func(l *Ledger) {
		l.config.MaxAttempts = maxAttempts
		l.config.BaseBackoff = base
		l.config.MaxBackoff = maxDelay
	}
}

// WithReconcile configures the background referral reconciler. A zero
// interval leaves the worker off.
func WithReconcile(interval, grace time.Duration) Option {
	return func(l *Ledger) {
		l.config.ReconcileInterval = interval
		l.config.ReconcileGrace = grace
	}
}

// WithReferralStore keeps redemptions in a dedicated store, e.g. Redis.
func WithReferralStore(rs referral.Store) Option {
	return func(l *Ledger) {
		l.referrals = rs
	}
}

// WithoutMigrate makes Start skip store migrations, for schemas that are
// managed outside the ledger.
func WithoutMigrate() Option {
	return func(l *Ledger) {
		l.noMigrate = true
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// Config returns the effective configuration.
func (l *Ledger) Config() Config { return l.config }

// Policy returns the effective balance rules.
func (l *Ledger) Policy() policy.Policy { return l.policy }

// Start validates the configuration, migrates the store and starts
// background workers.
func (l *Ledger) Start(ctx context.Context) error {
	if l.configErr != nil {
		return l.configErr
	}

	if !l.noMigrate {
		if err := l.store.Migrate(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
		}
	}

	l.plugins.EmitInit(ctx, l)

	if l.config.ReconcileInterval > 0 {
		workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		l.cancel = cancel
		l.wg.Add(1)
		go l.reconcileWorker(workerCtx)
	}

	l.logger.Info("credits ledger started",
		"initial_balance", l.config.InitialBalance,
		"max_balance", l.config.MaxBalance,
		"referral_bonus", l.config.ReferralBonus,
		"max_attempts", l.config.MaxAttempts,
		"reconcile_interval", l.config.ReconcileInterval,
	)

	return nil
}

// Stop shuts down background workers and closes the store.
func (l *Ledger) Stop() error {
	var err error
	l.stopOnce.Do(func() {
		close(l.stopChan)
		if l.cancel != nil {
			l.cancel()
		}
		l.wg.Wait()

		l.plugins.EmitShutdown(context.Background())

		err = l.store.Close()
	})
	return err
}

// ──────────────────────────────────────────────────
// Accounts
// ──────────────────────────────────────────────────

// InitializeAccount creates the account with the initial balance. It is
// idempotent: for an existing account it returns the stored record
// untouched, and concurrent calls create exactly one record.
func (l *Ledger) InitializeAccount(ctx context.Context, accountID string) (*account.Account, error) {
	if l.configErr != nil {
		return nil, l.configErr
	}
	if accountID == "" {
		return nil, ValidationError{Field: "account_id", Message: "must not be empty"}
	}

	now := l.now()
	a := l.policy.NewAccount(accountID, now)
	init := &entry.Entry{
		ID:               id.NewEntryID(),
		AccountID:        accountID,
		Delta:            a.Balance,
		Reason:           entry.ReasonInit,
		ResultingBalance: a.Balance,
		Timestamp:        now.UTC(),
	}

	err := l.store.CreateAccount(ctx, &a, init)
	if errors.Is(err, ErrAccountExists) {
		return l.store.GetAccount(ctx, accountID)
	}
	if err != nil {
		return nil, err
	}

	l.logger.Debug("credits: account initialized",
		"account_id", accountID,
		"balance", a.Balance,
	)
	l.plugins.EmitAccountInitialized(ctx, &a)
	return &a, nil
}

// GetAccount returns the stored account record.
func (l *Ledger) GetAccount(ctx context.Context, accountID string) (*account.Account, error) {
	return l.store.GetAccount(ctx, accountID)
}

// GetBalance returns the reportable balance. It is a single read and never
// retries.
func (l *Ledger) GetBalance(ctx context.Context, accountID string) (types.Balance, error) {
	a, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return types.Balance{}, err
	}
	return a.Report(), nil
}

// History returns the account's journal, newest first.
func (l *Ledger) History(ctx context.Context, accountID string, opts entry.ListOpts) ([]*entry.Entry, error) {
	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return l.store.ListEntries(ctx, accountID, opts)
}

// ──────────────────────────────────────────────────
// Balance mutations
// ──────────────────────────────────────────────────

// Deduct charges amount against the account and returns the new balance.
// Unlimited accounts are never charged.
func (l *Ledger) Deduct(ctx context.Context, accountID string, amount int64) (types.Balance, error) {
	if err := policy.ValidateAmount(amount); err != nil {
		return types.Balance{}, err
	}

	c, err := l.run(ctx, accountID, entry.ReasonDeduct, "", func(a account.Account) (account.Account, error) {
		return l.policy.Deduct(a, amount)
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			l.plugins.EmitDeductRejected(ctx, accountID, amount, err)
		}
		return types.Balance{}, err
	}

	l.committed(ctx, c)
	return c.account.Report(), nil
}

// Add credits amount to the account, saturating at the cap, and returns the
// new balance.
func (l *Ledger) Add(ctx context.Context, accountID string, amount int64) (types.Balance, error) {
	if err := policy.ValidateAmount(amount); err != nil {
		return types.Balance{}, err
	}

	c, err := l.run(ctx, accountID, entry.ReasonAdd, "", func(a account.Account) (account.Account, error) {
		return l.policy.Add(a, amount)
	})
	if err != nil {
		return types.Balance{}, err
	}

	l.committed(ctx, c)
	return c.account.Report(), nil
}

// SetUnlimited turns the unlimited flag on or off. The stored balance is
// kept and applies again once the flag is cleared.
func (l *Ledger) SetUnlimited(ctx context.Context, accountID string, value bool) error {
	c, err := l.run(ctx, accountID, entry.ReasonUnlimitedToggle, "", func(a account.Account) (account.Account, error) {
		return l.policy.SetUnlimited(a, value)
	})
	if err != nil {
		return err
	}

	l.logger.Info("credits: unlimited flag changed",
		"account_id", accountID,
		"unlimited", value,
	)
	l.plugins.EmitUnlimitedChanged(ctx, c.account)
	return nil
}

// committed logs and announces a balance mutation.
func (l *Ledger) committed(ctx context.Context, c *commit) {
	l.logger.Debug("credits: balance changed",
		"account_id", c.account.ID,
		"reason", c.entry.Reason,
		"delta", c.entry.Delta,
		"balance", c.entry.ResultingBalance,
		"version", c.account.Version,
	)
	l.plugins.EmitBalanceChanged(ctx, c.account, c.entry)
}

// ──────────────────────────────────────────────────
// Referrals
// ──────────────────────────────────────────────────

// RedeemReferral pays the referral bonus to both inviter and invitee, at most
// once per pair.
//
// Both accounts are looked up before the invitation key is claimed, so a
// missing account never consumes it. A repeated pair returns
// OutcomeAlreadyRedeemed with a nil error. If the key is claimed but a credit
// fails, the error wraps ErrReferralIncomplete and Reconcile completes the
// payout later.
func (l *Ledger) RedeemReferral(ctx context.Context, inviterID, inviteeID string) (referral.Outcome, error) {
	if l.configErr != nil {
		return "", l.configErr
	}
	if err := referral.ValidatePair(inviterID, inviteeID); err != nil {
		return "", err
	}
	for _, accountID := range []string{inviterID, inviteeID} {
		if _, err := l.store.GetAccount(ctx, accountID); err != nil {
			return "", err
		}
	}

	outcome, red, err := l.guard.Redeem(ctx, inviterID, inviteeID)
	if err != nil {
		return "", err
	}

	if outcome == referral.OutcomeAlreadyRedeemed {
		key := referral.Key(inviterID, inviteeID)
		l.logger.Debug("credits: referral already redeemed", "invitation_key", key)
		l.plugins.EmitReferralDuplicate(ctx, key)
		return outcome, nil
	}

	for _, accountID := range []string{red.InviterID, red.InviteeID} {
		if _, err := l.creditBonus(ctx, red, accountID); err != nil {
			l.logger.Error("credits: referral bonus not credited",
				"invitation_key", red.InvitationKey,
				"account_id", accountID,
				"error", err,
			)
			l.plugins.EmitReferralIncomplete(ctx, red, err)
			return outcome, fmt.Errorf("%w: %s: %w", ErrReferralIncomplete, red.InvitationKey, err)
		}
	}

	l.logger.Info("credits: referral redeemed",
		"invitation_key", red.InvitationKey,
		"bonus", l.policy.Bonus(),
	)
	l.plugins.EmitReferralRedeemed(ctx, red)
	return outcome, nil
}

// creditBonus pays one side of a redemption. It reports false without error
// when that side was already paid.
func (l *Ledger) creditBonus(ctx context.Context, red *referral.Redemption, accountID string) (bool, error) {
	bonus := l.policy.Bonus()
	c, err := l.run(ctx, accountID, entry.ReasonReferralBonus, red.InvitationKey, func(a account.Account) (account.Account, error) {
		return l.policy.Add(a, bonus)
	})
	if errors.Is(err, ErrDuplicateEntry) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	l.committed(ctx, c)
	return true, nil
}
