package store

import (
	"context"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/entry"
	"github.com/xraph/credits/referral"
)

// Store is the unified storage interface for the credit ledger.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Account methods
	GetAccount(ctx context.Context, accountID string) (*account.Account, error)
	CreateAccount(ctx context.Context, a *account.Account, init *entry.Entry) error
	UpdateAccount(ctx context.Context, a *account.Account, expectedVersion int64, e *entry.Entry) error

	// Entry methods
	ListEntries(ctx context.Context, accountID string, opts entry.ListOpts) ([]*entry.Entry, error)

	// Redemption methods
	CreateRedemption(ctx context.Context, r *referral.Redemption) error
	GetRedemption(ctx context.Context, invitationKey string) (*referral.Redemption, error)
	ListRedemptions(ctx context.Context, opts referral.ListOpts) ([]*referral.Redemption, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Compile-time checks that Store satisfies every sub-interface.
var (
	_ account.Store  = (Store)(nil)
	_ entry.Store    = (Store)(nil)
	_ referral.Store = (Store)(nil)
)
