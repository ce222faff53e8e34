package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// UnlimitedLiteral is the wire form of an unlimited balance.
const UnlimitedLiteral = "unlimited"

// Balance is the externally reported credit balance of an account.
// An unlimited account reports UnlimitedLiteral instead of its stored amount.
type Balance struct {
	Amount    int64
	Unlimited bool
}

// Limited returns a finite balance.
func Limited(amount int64) Balance {
	return Balance{Amount: amount}
}

// Unlimited returns the unlimited balance.
func Unlimited() Balance {
	return Balance{Unlimited: true}
}

// Covers reports whether the balance can pay for amount without going negative.
func (b Balance) Covers(amount int64) bool {
	return b.Unlimited || b.Amount >= amount
}

// String renders the balance as it appears on the wire.
func (b Balance) String() string {
	if b.Unlimited {
		return UnlimitedLiteral
	}
	return strconv.FormatInt(b.Amount, 10)
}

// MarshalJSON encodes an integer, or the string "unlimited".
func (b Balance) MarshalJSON() ([]byte, error) {
	if b.Unlimited {
		return json.Marshal(UnlimitedLiteral)
	}
	return []byte(strconv.FormatInt(b.Amount, 10)), nil
}

// UnmarshalJSON accepts an integer or the string "unlimited".
func (b *Balance) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != UnlimitedLiteral {
			return fmt.Errorf("types: invalid balance %q", s)
		}
		*b = Unlimited()
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("types: invalid balance %s: %w", data, err)
	}
	*b = Limited(n)
	return nil
}

// Report is the balance document handed to presentation layers.
type Report struct {
	Balance Balance `json:"balance"`
}
