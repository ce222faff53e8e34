package referral_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/credits/referral"
)

// mapStore is a minimal referral.Store for guard tests.
type mapStore struct {
	mu      sync.Mutex
	records map[string]*referral.Redemption
	failGet bool
	failAll error
}

func newMapStore() *mapStore {
	return &mapStore{records: make(map[string]*referral.Redemption)}
}

func (s *mapStore) CreateRedemption(_ context.Context, r *referral.Redemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	if _, ok := s.records[r.InvitationKey]; ok {
		return referral.ErrAlreadyRedeemed
	}
	c := *r
	s.records[r.InvitationKey] = &c
	return nil
}

func (s *mapStore) GetRedemption(_ context.Context, key string) (*referral.Redemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return nil, errors.New("lookup failed")
	}
	r, ok := s.records[key]
	if !ok {
		return nil, referral.ErrRedemptionNotFound
	}
	c := *r
	return &c, nil
}

func (s *mapStore) ListRedemptions(context.Context, referral.ListOpts) ([]*referral.Redemption, error) {
	return nil, nil
}

func TestKey(t *testing.T) {
	if got := referral.Key("alice", "bob"); got != "alice:bob" {
		t.Errorf("Key = %q, want alice:bob", got)
	}
	if referral.Key("alice", "bob") == referral.Key("bob", "alice") {
		t.Error("reversed pair produced the same key")
	}
}

func TestValidatePair(t *testing.T) {
	tests := []struct {
		name             string
		inviter, invitee string
		wantErr          bool
	}{
		{"valid", "alice", "bob", false},
		{"self", "alice", "alice", true},
		{"empty inviter", "", "bob", true},
		{"empty invitee", "alice", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := referral.ValidatePair(tt.inviter, tt.invitee)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, referral.ErrInvalidReferral) {
				t.Errorf("err = %v, want ErrInvalidReferral", err)
			}
		})
	}
}

func TestGuardRedeem(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	g := referral.NewGuard(newMapStore(), func() time.Time { return at })

	outcome, r, err := g.Redeem(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != referral.OutcomeGranted {
		t.Fatalf("outcome = %q, want granted", outcome)
	}
	if r.InvitationKey != "alice:bob" || r.InviterID != "alice" || r.InviteeID != "bob" {
		t.Errorf("redemption = %+v", r)
	}
	if !r.RedeemedAt.Equal(at) {
		t.Errorf("RedeemedAt = %v, want %v", r.RedeemedAt, at)
	}
	if r.ID.IsNil() {
		t.Error("redemption has nil ID")
	}

	outcome, existing, err := g.Redeem(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != referral.OutcomeAlreadyRedeemed {
		t.Fatalf("outcome = %q, want already_redeemed", outcome)
	}
	if existing == nil || existing.ID.String() != r.ID.String() {
		t.Errorf("existing = %+v, want the first redemption", existing)
	}
}

func TestGuardRedeemConcurrent(t *testing.T) {
	g := referral.NewGuard(newMapStore(), nil)

	var (
		mu      sync.Mutex
		granted int
		wg      sync.WaitGroup
	)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, _, err := g.Redeem(context.Background(), "alice", "bob")
			if err != nil {
				t.Errorf("Redeem: %v", err)
				return
			}
			if outcome == referral.OutcomeGranted {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != 1 {
		t.Fatalf("granted %d times, want 1", granted)
	}
}

func TestGuardRedeemErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid pair", func(t *testing.T) {
		g := referral.NewGuard(newMapStore(), nil)
		if _, _, err := g.Redeem(ctx, "alice", "alice"); !errors.Is(err, referral.ErrInvalidReferral) {
			t.Fatalf("err = %v, want ErrInvalidReferral", err)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		boom := errors.New("boom")
		s := newMapStore()
		s.failAll = boom
		g := referral.NewGuard(s, nil)
		outcome, r, err := g.Redeem(ctx, "alice", "bob")
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want wrapped boom", err)
		}
		if outcome != "" || r != nil {
			t.Errorf("got outcome %q and record %v on failure", outcome, r)
		}
	})

	t.Run("duplicate with failed lookup", func(t *testing.T) {
		s := newMapStore()
		g := referral.NewGuard(s, nil)
		if _, _, err := g.Redeem(ctx, "alice", "bob"); err != nil {
			t.Fatal(err)
		}
		s.failGet = true
		outcome, r, err := g.Redeem(ctx, "alice", "bob")
		if err != nil {
			t.Fatalf("err = %v, want nil", err)
		}
		if outcome != referral.OutcomeAlreadyRedeemed || r != nil {
			t.Errorf("got %q, %v; want already_redeemed with no record", outcome, r)
		}
	})
}
