package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/credits/id"
)

// ErrInvalidReferral is returned for empty or self-referencing pairs.
var ErrInvalidReferral = errors.New("credits: invalid referral pair")

// ValidatePair rejects empty IDs and self-referrals.
func ValidatePair(inviterID, inviteeID string) error {
	if inviterID == "" || inviteeID == "" {
		return fmt.Errorf("%w: inviter and invitee are required", ErrInvalidReferral)
	}
	if inviterID == inviteeID {
		return fmt.Errorf("%w: %q cannot refer itself", ErrInvalidReferral, inviterID)
	}
	return nil
}

// Outcome is the result of claiming an invitation key.
type Outcome string

const (
	// OutcomeGranted means this caller claimed the key and must credit both
	// parties.
	OutcomeGranted Outcome = "granted"
	// OutcomeAlreadyRedeemed means the key was consumed earlier. It is a
	// successful no-op, not an error.
	OutcomeAlreadyRedeemed Outcome = "already_redeemed"
)

// Guard grants each invitation key at most once.
type Guard struct {
	store Store
	now   func() time.Time
}

// NewGuard returns a Guard over s. A nil clock defaults to time.Now.
func NewGuard(s Store, now func() time.Time) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{store: s, now: now}
}

// Redeem claims the key for inviterID/inviteeID with a conditional create.
// Of any number of concurrent callers for the same pair exactly one sees
// OutcomeGranted.
func (g *Guard) Redeem(ctx context.Context, inviterID, inviteeID string) (Outcome, *Redemption, error) {
	if err := ValidatePair(inviterID, inviteeID); err != nil {
		return "", nil, err
	}

	r := &Redemption{
		ID:            id.NewRedemptionID(),
		InvitationKey: Key(inviterID, inviteeID),
		InviterID:     inviterID,
		InviteeID:     inviteeID,
		RedeemedAt:    g.now().UTC(),
	}

	err := g.store.CreateRedemption(ctx, r)
	switch {
	case err == nil:
		return OutcomeGranted, r, nil
	case errors.Is(err, ErrAlreadyRedeemed):
		existing, getErr := g.store.GetRedemption(ctx, r.InvitationKey)
		if getErr != nil {
			// The claim itself is settled; only the lookup failed.
			return OutcomeAlreadyRedeemed, nil, nil //nolint:nilerr // duplicate outcome stands on its own
		}
		return OutcomeAlreadyRedeemed, existing, nil
	default:
		return "", nil, fmt.Errorf("credits: claim invitation %q: %w", r.InvitationKey, err)
	}
}
