// Package memory is an in-process store.Store. Each operation runs inside a
// single mutex-guarded critical section, which makes the conditional write
// and the entry append trivially atomic. Records are copied on the way in
// and on the way out so callers never share state with the store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	credits "github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/entry"
	"github.com/xraph/credits/referral"
	creditstore "github.com/xraph/credits/store"
)

// compile-time interface check
var _ creditstore.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	closed bool

	accounts    map[string]*account.Account
	entries     map[string][]*entry.Entry // by account, oldest first
	references  map[string]struct{}       // account_id + "\x00" + reference
	redemptions map[string]*referral.Redemption
}

func New() *Store {
	return &Store{
		accounts:    make(map[string]*account.Account),
		entries:     make(map[string][]*entry.Entry),
		references:  make(map[string]struct{}),
		redemptions: make(map[string]*referral.Redemption),
	}
}

// ==================== Account Store ====================

func (s *Store) GetAccount(_ context.Context, accountID string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, credits.ErrStoreClosed
	}
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, credits.ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (s *Store) CreateAccount(_ context.Context, a *account.Account, init *entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return credits.ErrStoreClosed
	}
	if _, exists := s.accounts[a.ID]; exists {
		return credits.ErrAccountExists
	}
	s.accounts[a.ID] = a.Clone()
	if init != nil {
		s.appendEntry(init)
	}
	return nil
}

func (s *Store) UpdateAccount(_ context.Context, a *account.Account, expectedVersion int64, e *entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return credits.ErrStoreClosed
	}
	current, ok := s.accounts[a.ID]
	if !ok {
		return credits.ErrAccountNotFound
	}
	if current.Version != expectedVersion {
		return credits.ErrVersionConflict
	}
	if e != nil && s.hasReference(e) {
		return credits.ErrDuplicateEntry
	}

	next := a.Clone()
	next.Version = expectedVersion + 1
	s.accounts[a.ID] = next
	if e != nil {
		s.appendEntry(e)
	}
	return nil
}

// appendEntry must be called with s.mu held for writing.
func (s *Store) appendEntry(e *entry.Entry) {
	c := *e
	s.entries[e.AccountID] = append(s.entries[e.AccountID], &c)
	if e.Reference != "" {
		s.references[e.AccountID+"\x00"+e.Reference] = struct{}{}
	}
}

func (s *Store) hasReference(e *entry.Entry) bool {
	if e.Reference == "" {
		return false
	}
	_, ok := s.references[e.AccountID+"\x00"+e.Reference]
	return ok
}

// ==================== Entry Store ====================

func (s *Store) ListEntries(_ context.Context, accountID string, opts entry.ListOpts) ([]*entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, credits.ErrStoreClosed
	}

	all := s.entries[accountID]
	result := make([]*entry.Entry, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if opts.Matches(all[i]) {
			c := *all[i]
			result = append(result, &c)
		}
	}
	return paginate(result, opts.Offset, opts.Limit), nil
}

// ==================== Redemption Store ====================

func (s *Store) CreateRedemption(_ context.Context, r *referral.Redemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return credits.ErrStoreClosed
	}
	if _, exists := s.redemptions[r.InvitationKey]; exists {
		return credits.ErrAlreadyRedeemed
	}
	c := *r
	s.redemptions[r.InvitationKey] = &c
	return nil
}

func (s *Store) GetRedemption(_ context.Context, invitationKey string) (*referral.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, credits.ErrStoreClosed
	}
	r, ok := s.redemptions[invitationKey]
	if !ok {
		return nil, credits.ErrRedemptionNotFound
	}
	c := *r
	return &c, nil
}

func (s *Store) ListRedemptions(_ context.Context, opts referral.ListOpts) ([]*referral.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, credits.ErrStoreClosed
	}

	result := make([]*referral.Redemption, 0, len(s.redemptions))
	for _, r := range s.redemptions {
		if !opts.RedeemedBefore.IsZero() && !r.RedeemedAt.Before(opts.RedeemedBefore) {
			continue
		}
		c := *r
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].RedeemedAt.Equal(result[j].RedeemedAt) {
			return strings.Compare(result[i].InvitationKey, result[j].InvitationKey) < 0
		}
		return result[i].RedeemedAt.Before(result[j].RedeemedAt)
	})
	return paginate(result, opts.Offset, opts.Limit), nil
}

// ==================== Core ====================

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return credits.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func paginate[T any](items []T, offset, limit int) []T {
	start := min(max(offset, 0), len(items))
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return items[start:end]
}
