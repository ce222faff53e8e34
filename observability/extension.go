// Package observability provides a metrics extension for the credit ledger
// that records event counts through a pluggable MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/entry"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/referral"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnAccountInitialized = (*MetricsExtension)(nil)
	_ plugin.OnBalanceChanged     = (*MetricsExtension)(nil)
	_ plugin.OnDeductRejected     = (*MetricsExtension)(nil)
	_ plugin.OnUnlimitedChanged   = (*MetricsExtension)(nil)
	_ plugin.OnConflictRetry      = (*MetricsExtension)(nil)
	_ plugin.OnLedgerBusy         = (*MetricsExtension)(nil)
	_ plugin.OnReferralRedeemed   = (*MetricsExtension)(nil)
	_ plugin.OnReferralDuplicate  = (*MetricsExtension)(nil)
	_ plugin.OnReferralIncomplete = (*MetricsExtension)(nil)
	_ plugin.OnReferralRepaired   = (*MetricsExtension)(nil)
	_ plugin.OnReconciled         = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records ledger-wide metrics.
// Register it as a plugin to track balance and referral activity.
type MetricsExtension struct {
	factory MetricFactory

	// Account metrics
	AccountsInitialized Counter
	UnlimitedChanged    Counter

	// Balance metrics
	Deducts          Counter
	Adds             Counter
	DeductRejected   Counter
	CreditsDeducted  Counter
	CreditsAdded     Counter
	ResultingBalance Histogram

	// Concurrency metrics
	ConflictRetries Counter
	RetryWait       Histogram
	LedgerBusy      Counter

	// Referral metrics
	ReferralsRedeemed   Counter
	ReferralDuplicates  Counter
	ReferralsIncomplete Counter
	ReferralBonuses     Counter
	ReferralsRepaired   Counter

	// Reconciler metrics
	ReconcilePasses  Counter
	ReconcileScanned Counter
	ReconcileFailed  Counter
	ReconcileLatency Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		AccountsInitialized: factory.Counter("credits.account.initialized"),
		UnlimitedChanged:    factory.Counter("credits.account.unlimited_changed"),

		Deducts:          factory.Counter("credits.balance.deducts"),
		Adds:             factory.Counter("credits.balance.adds"),
		DeductRejected:   factory.Counter("credits.balance.deduct_rejected"),
		CreditsDeducted:  factory.Counter("credits.balance.deducted_total"),
		CreditsAdded:     factory.Counter("credits.balance.added_total"),
		ResultingBalance: factory.Histogram("credits.balance.resulting"),

		ConflictRetries: factory.Counter("credits.engine.conflict_retries"),
		RetryWait:       factory.Histogram("credits.engine.retry_wait_ms"),
		LedgerBusy:      factory.Counter("credits.engine.busy"),

		ReferralsRedeemed:   factory.Counter("credits.referral.redeemed"),
		ReferralDuplicates:  factory.Counter("credits.referral.duplicates"),
		ReferralsIncomplete: factory.Counter("credits.referral.incomplete"),
		ReferralBonuses:     factory.Counter("credits.referral.bonus_credits"),
		ReferralsRepaired:   factory.Counter("credits.referral.repaired"),

		ReconcilePasses:  factory.Counter("credits.reconcile.passes"),
		ReconcileScanned: factory.Counter("credits.reconcile.scanned"),
		ReconcileFailed:  factory.Counter("credits.reconcile.failed"),
		ReconcileLatency: factory.Histogram("credits.reconcile.latency_ms"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnAccountInitialized implements plugin.OnAccountInitialized.
func (m *MetricsExtension) OnAccountInitialized(_ context.Context, _ *account.Account) error {
	m.AccountsInitialized.Inc()
	return nil
}

// OnBalanceChanged implements plugin.OnBalanceChanged.
func (m *MetricsExtension) OnBalanceChanged(_ context.Context, _ *account.Account, e *entry.Entry) error {
	switch e.Reason {
	case entry.ReasonDeduct:
		m.Deducts.Inc()
		m.CreditsDeducted.Add(float64(-e.Delta))
	case entry.ReasonAdd:
		m.Adds.Inc()
		m.CreditsAdded.Add(float64(e.Delta))
	case entry.ReasonReferralBonus:
		m.ReferralBonuses.Add(float64(e.Delta))
	}
	m.ResultingBalance.Observe(float64(e.ResultingBalance))
	return nil
}

// OnDeductRejected implements plugin.OnDeductRejected.
func (m *MetricsExtension) OnDeductRejected(_ context.Context, _ string, _ int64, _ error) error {
	m.DeductRejected.Inc()
	return nil
}

// OnUnlimitedChanged implements plugin.OnUnlimitedChanged.
func (m *MetricsExtension) OnUnlimitedChanged(_ context.Context, _ *account.Account) error {
	m.UnlimitedChanged.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Concurrency hooks
// ──────────────────────────────────────────────────

// OnConflictRetry implements plugin.OnConflictRetry.
func (m *MetricsExtension) OnConflictRetry(_ context.Context, _ string, _ int, wait time.Duration) error {
	m.ConflictRetries.Inc()
	m.RetryWait.Observe(float64(wait.Milliseconds()))
	return nil
}

// OnLedgerBusy implements plugin.OnLedgerBusy.
func (m *MetricsExtension) OnLedgerBusy(_ context.Context, _ string, _ int) error {
	m.LedgerBusy.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Referral hooks
// ──────────────────────────────────────────────────

// OnReferralRedeemed implements plugin.OnReferralRedeemed.
func (m *MetricsExtension) OnReferralRedeemed(_ context.Context, _ *referral.Redemption) error {
	m.ReferralsRedeemed.Inc()
	return nil
}

// OnReferralDuplicate implements plugin.OnReferralDuplicate.
func (m *MetricsExtension) OnReferralDuplicate(_ context.Context, _ string) error {
	m.ReferralDuplicates.Inc()
	return nil
}

// OnReferralIncomplete implements plugin.OnReferralIncomplete.
func (m *MetricsExtension) OnReferralIncomplete(_ context.Context, _ *referral.Redemption, _ error) error {
	m.ReferralsIncomplete.Inc()
	return nil
}

// OnReferralRepaired implements plugin.OnReferralRepaired.
func (m *MetricsExtension) OnReferralRepaired(_ context.Context, _ *referral.Redemption, _ string) error {
	m.ReferralsRepaired.Inc()
	return nil
}

// OnReconciled implements plugin.OnReconciled.
func (m *MetricsExtension) OnReconciled(_ context.Context, scanned, _, failed int, elapsed time.Duration) error {
	m.ReconcilePasses.Inc()
	m.ReconcileScanned.Add(float64(scanned))
	m.ReconcileFailed.Add(float64(failed))
	m.ReconcileLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}
