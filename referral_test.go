package credits_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/xraph/credits"
	"github.com/xraph/credits/entry"
	"github.com/xraph/credits/referral"
	"github.com/xraph/credits/store/memory"
	"github.com/xraph/credits/types"
)

// spend brings each account below the cap so a bonus is observable.
func spend(t *testing.T, l *credits.Ledger, amount int64, ids ...string) {
	t.Helper()
	for _, accountID := range ids {
		if _, err := l.Deduct(context.Background(), accountID, amount); err != nil {
			t.Fatalf("Deduct(%q): %v", accountID, err)
		}
	}
}

func TestRedeemReferral(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	l := newLedger(t, memory.New(), credits.WithPlugin(rec))
	mustInit(t, l, "alice", "bob")
	spend(t, l, 100, "alice", "bob")

	outcome, err := l.RedeemReferral(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	if outcome != referral.OutcomeGranted {
		t.Fatalf("outcome = %q, want granted", outcome)
	}
	for _, accountID := range []string{"alice", "bob"} {
		if got := balanceOf(t, l, accountID); got != types.Limited(450) {
			t.Errorf("%s balance = %v, want 450", accountID, got)
		}
	}

	outcome, err = l.RedeemReferral(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("second redeem: %v", err)
	}
	if outcome != referral.OutcomeAlreadyRedeemed {
		t.Fatalf("outcome = %q, want already_redeemed", outcome)
	}
	for _, accountID := range []string{"alice", "bob"} {
		if got := balanceOf(t, l, accountID); got != types.Limited(450) {
			t.Errorf("%s balance after duplicate = %v, want 450", accountID, got)
		}
	}

	bonuses, err := l.History(ctx, "bob", entry.ListOpts{Reason: entry.ReasonReferralBonus})
	if err != nil {
		t.Fatal(err)
	}
	if len(bonuses) != 1 || bonuses[0].Reference != "alice:bob" || bonuses[0].Delta != 50 {
		t.Errorf("bob bonus entries = %+v, want one +50 referencing alice:bob", bonuses)
	}

	if rec.redeemed.Load() != 1 || rec.duplicates.Load() != 1 {
		t.Errorf("redeemed=%d duplicates=%d, want 1/1", rec.redeemed.Load(), rec.duplicates.Load())
	}
}

func TestRedeemReferralReversedPairIsDistinct(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New())
	mustInit(t, l, "alice", "bob")
	spend(t, l, 300, "alice", "bob")

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		outcome, err := l.RedeemReferral(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatal(err)
		}
		if outcome != referral.OutcomeGranted {
			t.Fatalf("%s:%s outcome = %q, want granted", pair[0], pair[1], outcome)
		}
	}
	if got := balanceOf(t, l, "alice"); got != types.Limited(300) {
		t.Errorf("alice balance = %v, want 300", got)
	}
}

func TestRedeemReferralSaturatesAtCap(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New())
	mustInit(t, l, "alice", "bob")
	spend(t, l, 20, "bob")

	if _, err := l.RedeemReferral(ctx, "alice", "bob"); err != nil {
		t.Fatal(err)
	}
	for _, accountID := range []string{"alice", "bob"} {
		if got := balanceOf(t, l, accountID); got != types.Limited(500) {
			t.Errorf("%s balance = %v, want capped 500", accountID, got)
		}
	}
}

func TestRedeemReferralConcurrent(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New())
	mustInit(t, l, "alice", "bob")
	spend(t, l, 200, "alice", "bob")

	var (
		wg                sync.WaitGroup
		granted, repeated atomic.Int32
	)
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := l.RedeemReferral(ctx, "alice", "bob")
			if err != nil {
				t.Errorf("RedeemReferral: %v", err)
				return
			}
			switch outcome {
			case referral.OutcomeGranted:
				granted.Add(1)
			case referral.OutcomeAlreadyRedeemed:
				repeated.Add(1)
			}
		}()
	}
	wg.Wait()

	if granted.Load() != 1 || repeated.Load() != 24 {
		t.Fatalf("granted=%d repeated=%d, want 1/24", granted.Load(), repeated.Load())
	}
	for _, accountID := range []string{"alice", "bob"} {
		if got := balanceOf(t, l, accountID); got != types.Limited(350) {
			t.Errorf("%s balance = %v, want 350", accountID, got)
		}
	}
}

func TestRedeemReferralRejections(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New())
	mustInit(t, l, "alice")

	tests := []struct {
		name             string
		inviter, invitee string
		want             error
	}{
		{"self referral", "alice", "alice", credits.ErrInvalidReferral},
		{"empty inviter", "", "alice", credits.ErrInvalidReferral},
		{"empty invitee", "alice", "", credits.ErrInvalidReferral},
		{"missing invitee", "alice", "carol", credits.ErrAccountNotFound},
		{"missing inviter", "carol", "alice", credits.ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := l.RedeemReferral(ctx, tt.inviter, tt.invitee)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if outcome != "" {
				t.Errorf("outcome = %q, want empty", outcome)
			}
		})
	}

	// The rejected attempt must not have consumed the key.
	mustInit(t, l, "carol")
	spend(t, l, 100, "carol")
	outcome, err := l.RedeemReferral(ctx, "alice", "carol")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != referral.OutcomeGranted {
		t.Errorf("outcome after account creation = %q, want granted", outcome)
	}
}
