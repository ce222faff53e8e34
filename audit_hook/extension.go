// Package audithook bridges credit ledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import any
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/entry"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/referral"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Extension)(nil)
	_ plugin.OnAccountInitialized = (*Extension)(nil)
	_ plugin.OnBalanceChanged     = (*Extension)(nil)
	_ plugin.OnDeductRejected     = (*Extension)(nil)
	_ plugin.OnUnlimitedChanged   = (*Extension)(nil)
	_ plugin.OnLedgerBusy         = (*Extension)(nil)
	_ plugin.OnReferralRedeemed   = (*Extension)(nil)
	_ plugin.OnReferralDuplicate  = (*Extension)(nil)
	_ plugin.OnReferralIncomplete = (*Extension)(nil)
	_ plugin.OnReferralRepaired   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges credit ledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountInitialized implements plugin.OnAccountInitialized.
func (e *Extension) OnAccountInitialized(ctx context.Context, a *account.Account) error {
	return e.record(ctx, ActionAccountInitialized, SeverityInfo, OutcomeSuccess,
		ResourceAccount, a.ID, CategoryAccount, nil,
		"balance", a.Balance,
	)
}

// OnUnlimitedChanged implements plugin.OnUnlimitedChanged.
func (e *Extension) OnUnlimitedChanged(ctx context.Context, a *account.Account) error {
	return e.record(ctx, ActionUnlimitedChanged, SeverityWarning, OutcomeSuccess,
		ResourceAccount, a.ID, CategoryAccount, nil,
		"unlimited", a.Unlimited,
		"balance", a.Balance,
	)
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnBalanceChanged implements plugin.OnBalanceChanged. Referral bonuses are
// audited under their own action.
func (e *Extension) OnBalanceChanged(ctx context.Context, a *account.Account, en *entry.Entry) error {
	var action string
	switch en.Reason {
	case entry.ReasonDeduct:
		action = ActionBalanceDeducted
	case entry.ReasonAdd:
		action = ActionBalanceAdded
	case entry.ReasonReferralBonus:
		action = ActionReferralBonus
	default:
		return nil
	}

	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceAccount, a.ID, CategoryBalance, nil,
		"entry_id", en.ID.String(),
		"delta", en.Delta,
		"balance", en.ResultingBalance,
		"reference", en.Reference,
		"unlimited", a.Unlimited,
	)
}

// OnDeductRejected implements plugin.OnDeductRejected.
func (e *Extension) OnDeductRejected(ctx context.Context, accountID string, amount int64, reason error) error {
	return e.record(ctx, ActionDeductRejected, SeverityWarning, OutcomeFailure,
		ResourceAccount, accountID, CategoryBalance, reason,
		"amount", amount,
	)
}

// OnLedgerBusy implements plugin.OnLedgerBusy.
func (e *Extension) OnLedgerBusy(ctx context.Context, accountID string, attempts int) error {
	return e.record(ctx, ActionLedgerBusy, SeverityError, OutcomeFailure,
		ResourceAccount, accountID, CategoryConcurrency, nil,
		"attempts", attempts,
	)
}

// ──────────────────────────────────────────────────
// Referral hooks
// ──────────────────────────────────────────────────

// OnReferralRedeemed implements plugin.OnReferralRedeemed.
func (e *Extension) OnReferralRedeemed(ctx context.Context, r *referral.Redemption) error {
	return e.record(ctx, ActionReferralRedeemed, SeverityInfo, OutcomeSuccess,
		ResourceReferral, r.InvitationKey, CategoryReferral, nil,
		"redemption_id", r.ID.String(),
		"inviter_id", r.InviterID,
		"invitee_id", r.InviteeID,
	)
}

// OnReferralDuplicate implements plugin.OnReferralDuplicate.
func (e *Extension) OnReferralDuplicate(ctx context.Context, invitationKey string) error {
	return e.record(ctx, ActionReferralDuplicate, SeverityInfo, OutcomeFailure,
		ResourceReferral, invitationKey, CategoryReferral, nil,
	)
}

// OnReferralIncomplete implements plugin.OnReferralIncomplete.
func (e *Extension) OnReferralIncomplete(ctx context.Context, r *referral.Redemption, err error) error {
	return e.record(ctx, ActionReferralIncomplete, SeverityCritical, OutcomePartial,
		ResourceReferral, r.InvitationKey, CategoryReferral, err,
		"inviter_id", r.InviterID,
		"invitee_id", r.InviteeID,
	)
}

// OnReferralRepaired implements plugin.OnReferralRepaired.
func (e *Extension) OnReferralRepaired(ctx context.Context, r *referral.Redemption, accountID string) error {
	return e.record(ctx, ActionReferralRepaired, SeverityWarning, OutcomeSuccess,
		ResourceReferral, r.InvitationKey, CategoryReferral, nil,
		"account_id", accountID,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
