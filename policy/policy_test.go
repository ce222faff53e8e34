package policy

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/xraph/credits/account"
)

func acct(balance int64, unlimited bool) account.Account {
	return account.Account{ID: "u1", Balance: balance, Unlimited: unlimited, Version: 3}
}

func TestDeduct(t *testing.T) {
	p := Default()

	tests := []struct {
		name    string
		in      account.Account
		amount  int64
		want    int64
		wantErr error
	}{
		{"exact balance", acct(200, false), 200, 0, nil},
		{"partial", acct(500, false), 200, 300, nil},
		{"insufficient", acct(500, false), 600, 500, ErrInsufficientBalance},
		{"zero amount", acct(500, false), 0, 500, ErrInvalidAmount},
		{"negative amount", acct(500, false), -5, 500, ErrInvalidAmount},
		{"unlimited bypass", acct(0, true), 10_000, 0, nil},
		{"unlimited still validates", acct(0, true), 0, 0, ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Deduct(tt.in, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got.Balance != tt.want {
				t.Errorf("balance = %d, want %d", got.Balance, tt.want)
			}
			if got.Version != tt.in.Version || got.Unlimited != tt.in.Unlimited {
				t.Errorf("policy must not touch version or flag: %+v", got)
			}
		})
	}
}

func TestAdd(t *testing.T) {
	p := Default()

	tests := []struct {
		name    string
		in      account.Account
		amount  int64
		want    int64
		wantErr error
	}{
		{"below cap", acct(300, false), 100, 400, nil},
		{"reaches cap", acct(300, false), 200, 500, nil},
		{"saturates", acct(500, false), 50, 500, nil},
		{"huge amount", acct(10, false), math.MaxInt64, 500, nil},
		{"zero amount", acct(300, false), 0, 300, ErrInvalidAmount},
		{"unlimited unchanged", acct(120, true), 50, 120, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Add(tt.in, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got.Balance != tt.want {
				t.Errorf("balance = %d, want %d", got.Balance, tt.want)
			}
		})
	}
}

func TestSetUnlimited(t *testing.T) {
	p := Default()
	got, err := p.SetUnlimited(acct(42, false), true)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Unlimited || got.Balance != 42 {
		t.Errorf("got %+v, want unlimited with balance kept", got)
	}
	got, _ = p.SetUnlimited(got, false)
	if got.Unlimited || got.Balance != 42 {
		t.Errorf("got %+v, want limited with balance kept", got)
	}
}

func TestScenario(t *testing.T) {
	p := Default()
	a := p.NewAccount("u1", time.Now())
	if a.Balance != 500 || a.Unlimited || a.Version != 0 {
		t.Fatalf("unexpected new account: %+v", a)
	}

	if _, err := p.Deduct(a, 600); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("deduct 600: %v", err)
	}
	a, _ = p.Deduct(a, 200)
	a, _ = p.Add(a, 300)
	if a.Balance != 500 {
		t.Fatalf("after add 300: %d", a.Balance)
	}
	a, _ = p.Add(a, 50)
	if a.Balance != 500 {
		t.Fatalf("after add 50: %d", a.Balance)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		p    Policy
		ok   bool
	}{
		{"default", Default(), true},
		{"initial above cap", Policy{InitialBalance: 600, MaxBalance: 500, ReferralBonus: 1}, false},
		{"negative cap", Policy{MaxBalance: -1, ReferralBonus: 1}, false},
		{"zero bonus", Policy{InitialBalance: 0, MaxBalance: 10}, false},
		{"empty start", Policy{InitialBalance: 0, MaxBalance: 10, ReferralBonus: 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err == nil) != tt.ok {
				t.Fatalf("Validate() = %v, ok=%v", err, tt.ok)
			}
			if err != nil && !errors.Is(err, ErrInvalidPolicy) {
				t.Errorf("expected ErrInvalidPolicy, got %v", err)
			}
		})
	}
}
