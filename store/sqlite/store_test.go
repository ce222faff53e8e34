package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/sqlitedriver"

	credits "github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/entry"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/referral"
	"github.com/xraph/credits/store/sqlite"
	"github.com/xraph/credits/types"
)

// newStore opens a migrated store over a fresh database file. A single
// connection serializes writers the way SQLite does anyway.
func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()

	drv := sqlitedriver.New()
	dsn := "file:" + filepath.Join(t.TempDir(), "credits.db") + "?_pragma=busy_timeout(5000)"
	if err := drv.Open(ctx, dsn, driver.WithPoolSize(1)); err != nil {
		t.Fatal(err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		t.Fatal(err)
	}
	s := sqlite.New(db)
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	return s
}

func newAccount(accountID string, balance int64) *account.Account {
	return &account.Account{
		Entity:  types.EntityAt(time.Now()),
		ID:      accountID,
		Balance: balance,
	}
}

func newEntry(accountID string, reason entry.Reason, delta, balance int64, ref string) *entry.Entry {
	return &entry.Entry{
		ID:               id.NewEntryID(),
		AccountID:        accountID,
		Delta:            delta,
		Reason:           reason,
		ResultingBalance: balance,
		Reference:        ref,
		Timestamp:        time.Now().UTC(),
	}
}

func TestCreateAccountRace(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	const racers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		exists  int
		other   []error
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CreateAccount(ctx, newAccount("u1", 500), newEntry("u1", entry.ReasonInit, 500, 500, ""))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, credits.ErrAccountExists):
				exists++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	if created != 1 || exists != racers-1 || len(other) != 0 {
		t.Fatalf("created = %d, exists = %d, other = %v", created, exists, other)
	}

	got, err := s.GetAccount(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Balance != 500 || got.Version != 0 || got.Unlimited {
		t.Errorf("account = %+v", got)
	}

	entries, err := s.ListEntries(ctx, "u1", entry.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Reason != entry.ReasonInit {
		t.Errorf("entries = %+v, want one init entry", entries)
	}

	if _, err := s.GetAccount(ctx, "nobody"); !errors.Is(err, credits.ErrAccountNotFound) {
		t.Errorf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestUpdateAccount(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	if err := s.CreateAccount(ctx, newAccount("u1", 500), newEntry("u1", entry.ReasonInit, 500, 500, "")); err != nil {
		t.Fatal(err)
	}

	next := newAccount("u1", 400)
	if err := s.UpdateAccount(ctx, next, 0, newEntry("u1", entry.ReasonDeduct, -100, 400, "")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		account *account.Account
		version int64
		want    error
	}{
		{"stale version", newAccount("u1", 1), 0, credits.ErrVersionConflict},
		{"future version", newAccount("u1", 1), 7, credits.ErrVersionConflict},
		{"missing account", newAccount("u2", 1), 0, credits.ErrAccountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEntry(tt.account.ID, entry.ReasonDeduct, -1, 1, "")
			if err := s.UpdateAccount(ctx, tt.account, tt.version, e); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	got, err := s.GetAccount(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Balance != 400 || got.Version != 1 {
		t.Errorf("balance = %d, version = %d, want 400, 1", got.Balance, got.Version)
	}

	entries, err := s.ListEntries(ctx, "u1", entry.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("entries = %d, want 2; rejected writes must not journal", len(entries))
	}
}

func TestJournalOneEntryPerWrite(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	writes := []*entry.Entry{
		newEntry("u1", entry.ReasonInit, 500, 500, ""),
		newEntry("u1", entry.ReasonDeduct, -200, 300, ""),
		newEntry("u1", entry.ReasonAdd, 150, 450, ""),
		newEntry("u1", entry.ReasonUnlimitedToggle, 0, 450, ""),
	}
	if err := s.CreateAccount(ctx, newAccount("u1", 500), writes[0]); err != nil {
		t.Fatal(err)
	}
	for i, e := range writes[1:] {
		a := newAccount("u1", e.ResultingBalance)
		a.Unlimited = e.Reason == entry.ReasonUnlimitedToggle
		if err := s.UpdateAccount(ctx, a, int64(i), e); err != nil {
			t.Fatalf("write %d: %v", i+1, err)
		}
	}

	got, err := s.ListEntries(ctx, "u1", entry.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(writes) {
		t.Fatalf("entries = %d, want %d", len(got), len(writes))
	}
	for i, e := range got {
		want := writes[len(writes)-1-i]
		if e.ID.String() != want.ID.String() || e.Reason != want.Reason ||
			e.Delta != want.Delta || e.ResultingBalance != want.ResultingBalance {
			t.Errorf("entry %d = %+v, want %+v", i, e, want)
		}
	}

	tests := []struct {
		name string
		opts entry.ListOpts
		want []entry.Reason
	}{
		{"by reason", entry.ListOpts{Reason: entry.ReasonDeduct}, []entry.Reason{entry.ReasonDeduct}},
		{"limit", entry.ListOpts{Limit: 2}, []entry.Reason{entry.ReasonUnlimitedToggle, entry.ReasonAdd}},
		{"offset", entry.ListOpts{Limit: 2, Offset: 2}, []entry.Reason{entry.ReasonDeduct, entry.ReasonInit}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListEntries(ctx, "u1", tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("entries = %d, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i].Reason != tt.want[i] {
					t.Errorf("entry %d reason = %s, want %s", i, got[i].Reason, tt.want[i])
				}
			}
		})
	}
}

func TestDuplicateReferenceRollsBackWrite(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	if err := s.CreateAccount(ctx, newAccount("bob", 400), newEntry("bob", entry.ReasonInit, 400, 400, "")); err != nil {
		t.Fatal(err)
	}

	bonus := newEntry("bob", entry.ReasonReferralBonus, 50, 450, "alice:bob")
	if err := s.UpdateAccount(ctx, newAccount("bob", 450), 0, bonus); err != nil {
		t.Fatal(err)
	}

	again := newEntry("bob", entry.ReasonReferralBonus, 50, 500, "alice:bob")
	if err := s.UpdateAccount(ctx, newAccount("bob", 500), 1, again); !errors.Is(err, credits.ErrDuplicateEntry) {
		t.Fatalf("err = %v, want ErrDuplicateEntry", err)
	}

	got, err := s.GetAccount(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if got.Balance != 450 || got.Version != 1 {
		t.Errorf("balance = %d, version = %d, want 450, 1", got.Balance, got.Version)
	}

	entries, err := s.ListEntries(ctx, "bob", entry.ListOpts{Reference: "alice:bob"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ID.String() != bonus.ID.String() {
		t.Errorf("entries = %+v, want only the first bonus", entries)
	}

	// The same reference on another account is a different bonus.
	if err := s.CreateAccount(ctx, newAccount("alice", 500), nil); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateAccount(ctx, newAccount("alice", 500), 0, newEntry("alice", entry.ReasonReferralBonus, 0, 500, "alice:bob")); err != nil {
		t.Errorf("inviter bonus: %v", err)
	}
}

func TestRedemptions(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	// A non-UTC zone checks that stored times compare as instants.
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("UTC+3", 3*3600))
	redemption := func(inviter, invitee string, at time.Time) *referral.Redemption {
		return &referral.Redemption{
			ID:            id.NewRedemptionID(),
			InvitationKey: referral.Key(inviter, invitee),
			InviterID:     inviter,
			InviteeID:     invitee,
			RedeemedAt:    at,
		}
	}

	for i, r := range []*referral.Redemption{
		redemption("alice", "bob", base),
		redemption("alice", "carol", base.Add(time.Minute)),
		redemption("dave", "erin", base.Add(2*time.Minute)),
	} {
		if err := s.CreateRedemption(ctx, r); err != nil {
			t.Fatalf("redemption %d: %v", i, err)
		}
	}

	if err := s.CreateRedemption(ctx, redemption("alice", "bob", base.Add(time.Hour))); !errors.Is(err, credits.ErrAlreadyRedeemed) {
		t.Fatalf("duplicate: err = %v, want ErrAlreadyRedeemed", err)
	}

	got, err := s.GetRedemption(ctx, "alice:bob")
	if err != nil {
		t.Fatal(err)
	}
	if got.InviterID != "alice" || got.InviteeID != "bob" || !got.RedeemedAt.Equal(base) {
		t.Errorf("redemption = %+v", got)
	}
	if _, err := s.GetRedemption(ctx, "bob:alice"); !errors.Is(err, credits.ErrRedemptionNotFound) {
		t.Errorf("err = %v, want ErrRedemptionNotFound", err)
	}

	tests := []struct {
		name string
		opts referral.ListOpts
		want []string
	}{
		{"all", referral.ListOpts{}, []string{"alice:bob", "alice:carol", "dave:erin"}},
		{"redeemed before", referral.ListOpts{RedeemedBefore: base.Add(90 * time.Second).UTC()}, []string{"alice:bob", "alice:carol"}},
		{"before is exclusive", referral.ListOpts{RedeemedBefore: base.Add(time.Minute)}, []string{"alice:bob"}},
		{"page", referral.ListOpts{Limit: 1, Offset: 1}, []string{"alice:carol"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListRedemptions(ctx, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			keys := make([]string, len(got))
			for i, r := range got {
				keys[i] = r.InvitationKey
			}
			if len(keys) != len(tt.want) {
				t.Fatalf("keys = %v, want %v", keys, tt.want)
			}
			for i := range tt.want {
				if keys[i] != tt.want[i] {
					t.Errorf("keys = %v, want %v", keys, tt.want)
					break
				}
			}
		})
	}
}
