package extension

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/credits"
)

func TestMergeWithDefaults(t *testing.T) {
	got := mergeWithDefaults(Config{MaxBalance: 2000, MaxAttempts: 9})

	want := DefaultConfig()
	want.MaxBalance = 2000
	want.MaxAttempts = 9
	if got != want {
		t.Errorf("merged = %+v, want %+v", got, want)
	}
	if err := got.ledgerConfig().Validate(); err != nil {
		t.Errorf("merged config invalid: %v", err)
	}
}

func TestMergeConfigurations(t *testing.T) {
	yaml := Config{
		InitialBalance: 50,
		RedisAddr:      "redis:6379",
	}
	programmatic := Config{
		InitialBalance:    999,
		MaxBalance:        1000,
		ReconcileInterval: time.Minute,
		RedisAddr:         "localhost:6379",
		DisableMigrate:    true,
		EnableMetrics:     true,
	}

	got := mergeConfigurations(yaml, programmatic)

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"yaml wins", got.InitialBalance, int64(50)},
		{"programmatic fills gap", got.MaxBalance, int64(1000)},
		{"programmatic interval", got.ReconcileInterval, time.Minute},
		{"yaml redis", got.RedisAddr, "redis:6379"},
		{"migrate flag", got.DisableMigrate, true},
		{"metrics flag", got.EnableMetrics, true},
		{"default bonus", got.ReferralBonus, credits.DefaultConfig().ReferralBonus},
		{"default batch", got.ReconcileBatchSize, credits.DefaultConfig().ReconcileBatchSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestDefaultConfigMatchesLedger(t *testing.T) {
	if got, want := DefaultConfig().ledgerConfig(), credits.DefaultConfig(); got != want {
		t.Errorf("ledger config = %+v, want %+v", got, want)
	}
}

func TestExplicitZeroBalances(t *testing.T) {
	e := &Extension{}
	WithBalances(0, 500, 50)(e)

	tests := []struct {
		name string
		cfg  Config
		want int64
	}{
		{"programmatic", mergeWithDefaults(e.config), 0},
		{"programmatic under yaml", mergeConfigurations(Config{MaxAttempts: 3}, e.config), 0},
		{"yaml", mergeWithDefaults(Config{explicit: fieldInitialBalance}), 0},
		{"yaml over programmatic", mergeConfigurations(Config{explicit: fieldInitialBalance}, Config{InitialBalance: 200}), 0},
		{"unset", mergeWithDefaults(Config{}), credits.DefaultConfig().InitialBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cfg.InitialBalance != tt.want {
				t.Errorf("initial balance = %d, want %d", tt.cfg.InitialBalance, tt.want)
			}
			if err := tt.cfg.ledgerConfig().Validate(); err != nil {
				t.Errorf("config invalid: %v", err)
			}
		})
	}
}

type fakeSource struct {
	values  map[string]any
	bindErr error
}

func (f fakeSource) source() configSource {
	return configSource{
		isSet: func(key string) bool {
			_, ok := f.values[key]
			return ok
		},
		bind: func(key string, target any) error {
			if f.bindErr != nil {
				return f.bindErr
			}
			cfg := target.(*Config)
			if v, ok := f.values[key+".initial_balance"].(int64); ok {
				cfg.InitialBalance = v
			}
			if v, ok := f.values[key+".max_balance"].(int64); ok {
				cfg.MaxBalance = v
			}
			return nil
		},
	}
}

func TestConfigSourceLoad(t *testing.T) {
	src := fakeSource{values: map[string]any{
		"credits":                 true,
		"credits.initial_balance": int64(0),
		"credits.max_balance":     int64(2000),
	}}.source()

	if _, found, _ := src.load("extensions.credits"); found {
		t.Error("absent section reported as found")
	}

	cfg, found, err := src.load("credits")
	if !found || err != nil {
		t.Fatalf("found = %v, err = %v", found, err)
	}
	merged := mergeWithDefaults(cfg)
	if merged.InitialBalance != 0 || merged.MaxBalance != 2000 {
		t.Errorf("initial = %d, max = %d, want 0, 2000", merged.InitialBalance, merged.MaxBalance)
	}
	if merged.ReferralBonus != credits.DefaultConfig().ReferralBonus {
		t.Errorf("unset bonus = %d, want default", merged.ReferralBonus)
	}
}

func TestConfigSourceBindError(t *testing.T) {
	bindErr := errors.New("cannot decode max_balance")
	src := fakeSource{values: map[string]any{"credits": true}, bindErr: bindErr}.source()

	_, found, err := src.load("credits")
	if !found {
		t.Fatal("present section reported as absent")
	}
	if !errors.Is(err, bindErr) {
		t.Errorf("err = %v, want the bind error", err)
	}
}
