package account

import (
	"context"

	"github.com/xraph/credits/entry"
)

type Store interface {
	// GetAccount returns the current record or ErrAccountNotFound.
	GetAccount(ctx context.Context, accountID string) (*Account, error)

	// CreateAccount inserts a together with its init entry. Exactly one of
	// several concurrent creates for the same ID succeeds; the others get
	// ErrAccountExists.
	CreateAccount(ctx context.Context, a *Account, init *entry.Entry) error

	// UpdateAccount stores a with Version = expectedVersion+1 and appends e,
	// both or neither, provided the stored version still equals
	// expectedVersion. Otherwise it returns ErrVersionConflict (or
	// ErrAccountNotFound when the record is gone). An entry whose non-empty
	// Reference was already journaled for the same account is rejected
	// with ErrDuplicateEntry and nothing is written.
	UpdateAccount(ctx context.Context, a *Account, expectedVersion int64, e *entry.Entry) error
}
