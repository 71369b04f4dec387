// Package money converts between decimal amounts and integer minor units.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MaxCents bounds every amount the shop accepts: ten billion in major units.
// Totals of many lines stay far from int64 overflow.
const MaxCents int64 = 1_000_000_000_000

var maxCents = decimal.NewFromInt(MaxCents)

// ErrInvalidAmount is returned for amounts that are not positive decimals.
var ErrInvalidAmount = errors.New("invalid amount")

// Parse converts a decimal string such as "199.00" into minor units.
// Amounts are rounded half away from zero to two places.
func Parse(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	cents := d.Mul(hundred).Round(0)
	if cents.Abs().GreaterThan(maxCents) {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, s)
	}
	return cents.IntPart(), nil
}

// ParseJSON accepts a JSON number or a JSON string holding a decimal.
func ParseJSON(raw json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, fmt.Errorf("%w: missing", ErrInvalidAmount)
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
		}
		s = str
	}
	return Parse(s)
}

// ParsePositive is ParseJSON with a > 0 check.
func ParsePositive(raw json.RawMessage) (int64, error) {
	cents, err := ParseJSON(raw)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return cents, nil
}

// Format renders minor units with two decimals, e.g. 19900 -> "199.00".
func Format(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// Float is for charts and printers only; never do arithmetic on it.
func Float(cents int64) float64 {
	f, _ := decimal.New(cents, -2).Float64()
	return f
}

// ShippingRule is the storefront's flat-rate shipping policy.
type ShippingRule struct {
	FreeThresholdCents int64
	FeeCents           int64
}

// Fee returns the shipping fee for an order subtotal. Orders strictly above
// the threshold ship free.
func (r ShippingRule) Fee(subtotalCents int64) int64 {
	if subtotalCents > r.FreeThresholdCents {
		return 0
	}
	return r.FeeCents
}
