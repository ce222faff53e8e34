package audithook

// Action constants for audit events.
const (
	// Account actions
	ActionAccountInitialized = "account.initialized"
	ActionUnlimitedChanged   = "account.unlimited_changed"

	// Balance actions
	ActionBalanceDeducted = "balance.deducted"
	ActionBalanceAdded    = "balance.added"
	ActionDeductRejected  = "balance.deduct_rejected"
	ActionLedgerBusy      = "ledger.busy"

	// Referral actions
	ActionReferralRedeemed   = "referral.redeemed"
	ActionReferralBonus      = "referral.bonus_credited"
	ActionReferralDuplicate  = "referral.duplicate"
	ActionReferralIncomplete = "referral.incomplete"
	ActionReferralRepaired   = "referral.repaired"
)

// Resource constants for audit events.
const (
	ResourceAccount  = "account"
	ResourceReferral = "referral"
)

// Category constants for audit events.
const (
	CategoryAccount     = "account"
	CategoryBalance     = "balance"
	CategoryReferral    = "referral"
	CategoryConcurrency = "concurrency"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
