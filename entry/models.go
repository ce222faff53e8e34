// Package entry defines the append-only journal of balance mutations.
package entry

import (
	"time"

	"github.com/xraph/credits/id"
)

// Reason classifies what caused a balance mutation.
type Reason string

const (
	ReasonInit            Reason = "init"
	ReasonDeduct          Reason = "deduct"
	ReasonAdd             Reason = "add"
	ReasonReferralBonus   Reason = "referral_bonus"
	ReasonUnlimitedToggle Reason = "unlimited_toggle"
)

// Valid reports whether r is one of the known reasons.
func (r Reason) Valid() bool {
	switch r {
	case ReasonInit, ReasonDeduct, ReasonAdd, ReasonReferralBonus, ReasonUnlimitedToggle:
		return true
	}
	return false
}

// Entry is one committed balance mutation. Entries are never updated.
type Entry struct {
	ID               id.EntryID `json:"id"`
	AccountID        string     `json:"account_id"`
	Delta            int64      `json:"delta"`
	Reason           Reason     `json:"reason"`
	ResultingBalance int64      `json:"resulting_balance"`
	// Reference ties the entry to its cause; for referral bonuses it is the
	// invitation key.
	Reference string    `json:"reference,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
