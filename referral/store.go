package referral

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAlreadyRedeemed    = errors.New("credits: referral already redeemed")
	ErrRedemptionNotFound = errors.New("credits: redemption not found")
)

type Store interface {
	// CreateRedemption inserts r unless a record with the same invitation
	// key exists, in which case it returns ErrAlreadyRedeemed and changes
	// nothing.
	CreateRedemption(ctx context.Context, r *Redemption) error
	GetRedemption(ctx context.Context, invitationKey string) (*Redemption, error)
	// ListRedemptions returns redemptions oldest first.
	ListRedemptions(ctx context.Context, opts ListOpts) ([]*Redemption, error)
}

type ListOpts struct {
	// RedeemedBefore, when set, excludes redemptions at or after it.
	RedeemedBefore time.Time
	Limit          int
	Offset         int
}
