package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/credits/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
		prefix  string
	}{
		{"EntryID", id.NewEntryID, id.ParseEntryID, "lent_"},
		{"RedemptionID", id.NewRedemptionID, id.ParseRedemptionID, "rdm_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			if !strings.HasPrefix(original.String(), tt.prefix) {
				t.Fatalf("expected prefix %q, got %q", tt.prefix, original.String())
			}
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossKindRejection(t *testing.T) {
	if _, err := id.ParseEntryID(id.NewRedemptionID().String()); err == nil {
		t.Error("ParseEntryID accepted a redemption ID")
	}
	if _, err := id.ParseRedemptionID(id.NewEntryID().String()); err == nil {
		t.Error("ParseRedemptionID accepted an entry ID")
	}
	if _, err := id.ParseAny(id.NewRedemptionID().String()); err != nil {
		t.Errorf("ParseAny: %v", err)
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"", "lent", "lent_!!", "LENT_01h2xcejqtf2nbrexx3vqjhp41"} {
		t.Run(in, func(t *testing.T) {
			if _, err := id.Parse(in); err == nil {
				t.Errorf("expected error for %q", in)
			}
		})
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" || i.Prefix() != "" {
		t.Errorf("nil ID should render empty, got %q / %q", i.String(), i.Prefix())
	}
}

func TestTextAndSQL(t *testing.T) {
	original := id.NewEntryID()

	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	var fromText id.ID
	if err := fromText.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if fromText.String() != original.String() {
		t.Errorf("text mismatch: %q != %q", fromText, original)
	}

	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	var fromSQL id.ID
	if err := fromSQL.Scan(val); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if fromSQL.String() != original.String() {
		t.Errorf("sql mismatch: %q != %q", fromSQL, original)
	}

	var nilID id.ID
	if v, _ := nilID.Value(); v != nil {
		t.Errorf("expected NULL for nil ID, got %v", v)
	}
	if err := fromSQL.Scan(nil); err != nil || !fromSQL.IsNil() {
		t.Errorf("Scan(nil) = %v, nil=%v", err, fromSQL.IsNil())
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		s := id.NewEntryID().String()
		if seen[s] {
			t.Fatalf("duplicate ID %q", s)
		}
		seen[s] = true
	}
}
