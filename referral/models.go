// Package referral records which inviter/invitee pairs have already been
// paid a referral bonus, and guards against paying them twice.
package referral

import (
	"time"

	"github.com/xraph/credits/id"
)

// Redemption marks an invitation key as consumed. There is at most one per
// key, ever.
type Redemption struct {
	ID            id.RedemptionID `json:"id"`
	InvitationKey string          `json:"invitation_key"`
	InviterID     string          `json:"inviter_id"`
	InviteeID     string          `json:"invitee_id"`
	RedeemedAt    time.Time       `json:"redeemed_at"`
}

// Key builds the invitation key for an inviter/invitee pair.
func Key(inviterID, inviteeID string) string {
	return inviterID + ":" + inviteeID
}
