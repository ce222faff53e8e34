package credits

import (
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/entry"
	"github.com/xraph/credits/referral"
	"github.com/xraph/credits/store"
	"github.com/xraph/credits/types"
)

// Re-export common types so callers rarely need the sub-packages.

type (
	Account         = account.Account
	Entry           = entry.Entry
	Reason          = entry.Reason
	Redemption      = referral.Redemption
	ReferralOutcome = referral.Outcome
	Balance         = types.Balance
	Report          = types.Report
	Entity          = types.Entity
	Store           = store.Store
)

// Referral outcomes.
const (
	OutcomeGranted         = referral.OutcomeGranted
	OutcomeAlreadyRedeemed = referral.OutcomeAlreadyRedeemed
)

// Entry reasons.
const (
	ReasonInit            = entry.ReasonInit
	ReasonDeduct          = entry.ReasonDeduct
	ReasonAdd             = entry.ReasonAdd
	ReasonReferralBonus   = entry.ReasonReferralBonus
	ReasonUnlimitedToggle = entry.ReasonUnlimitedToggle
)

// Re-export constructors.
var (
	NewEntity     = types.NewEntity
	Unlimited     = types.Unlimited
	Limited       = types.Limited
	InvitationKey = referral.Key
)
