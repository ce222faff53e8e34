// Package plugin provides an extensible hook system for the credit ledger.
// Plugins implement any subset of the hook interfaces below and are
// discovered by type assertion at registration time.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/entry"
	"github.com/xraph/credits/referral"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts. l is the *credits.Ledger.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l any) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnAccountInitialized is called once per account, by the caller whose
// create won.
type OnAccountInitialized interface {
	Plugin
	OnAccountInitialized(ctx context.Context, a *account.Account) error
}

// OnBalanceChanged is called after every committed deduct, add or referral
// bonus, with the committed record and its journal entry.
type OnBalanceChanged interface {
	Plugin
	OnBalanceChanged(ctx context.Context, a *account.Account, e *entry.Entry) error
}

// OnDeductRejected is called when a deduction fails on policy.
type OnDeductRejected interface {
	Plugin
	OnDeductRejected(ctx context.Context, accountID string, amount int64, reason error) error
}

// OnUnlimitedChanged is called after the unlimited flag is written.
type OnUnlimitedChanged interface {
	Plugin
	OnUnlimitedChanged(ctx context.Context, a *account.Account) error
}

// ──────────────────────────────────────────────────
// Concurrency hooks
// ──────────────────────────────────────────────────

// OnConflictRetry is called each time an optimistic write loses and the
// engine backs off before retrying.
type OnConflictRetry interface {
	Plugin
	OnConflictRetry(ctx context.Context, accountID string, attempt int, wait time.Duration) error
}

// OnLedgerBusy is called when a mutation gives up after exhausting retries.
type OnLedgerBusy interface {
	Plugin
	OnLedgerBusy(ctx context.Context, accountID string, attempts int) error
}

// ──────────────────────────────────────────────────
// Referral hooks
// ──────────────────────────────────────────────────

// OnReferralRedeemed is called after both parties have been credited.
type OnReferralRedeemed interface {
	Plugin
	OnReferralRedeemed(ctx context.Context, r *referral.Redemption) error
}

// OnReferralDuplicate is called when an already-consumed key is presented.
type OnReferralDuplicate interface {
	Plugin
	OnReferralDuplicate(ctx context.Context, invitationKey string) error
}

// OnReferralIncomplete is called when the key was claimed but crediting a
// party failed. Reconciliation picks it up later.
type OnReferralIncomplete interface {
	Plugin
	OnReferralIncomplete(ctx context.Context, r *referral.Redemption, err error) error
}

// OnReferralRepaired is called when reconciliation credits a party that a
// previous redemption missed.
type OnReferralRepaired interface {
	Plugin
	OnReferralRepaired(ctx context.Context, r *referral.Redemption, accountID string) error
}

// OnReconciled is called at the end of every reconciliation pass.
type OnReconciled interface {
	Plugin
	OnReconciled(ctx context.Context, scanned, repaired, failed int, elapsed time.Duration) error
}
