// Package account defines the credit account record and its storage contract.
package account

import (
	"github.com/xraph/credits/types"
)

// Account is the authoritative balance record for one identity.
//
// Version increases by exactly one on every committed mutation and is the
// token the optimistic engine compares when writing.
type Account struct {
	types.Entity
	ID        string `json:"id"`
	Balance   int64  `json:"balance"`
	Unlimited bool   `json:"unlimited"`
	Version   int64  `json:"version"`
}

// Report returns the externally visible balance.
func (a *Account) Report() types.Balance {
	if a.Unlimited {
		return types.Unlimited()
	}
	return types.Limited(a.Balance)
}

// Clone returns a copy that shares no state with a.
func (a *Account) Clone() *Account {
	c := *a
	return &c
}
