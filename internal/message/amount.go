package message

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for amounts that are not positive numbers
// with at most two fractional digits.
var ErrInvalidAmount = errors.New("invalid amount")

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// ParseAmount converts a decimal amount such as "12,50" or "3" into minor
// units (1250, 300).
func ParseAmount(s string) (int64, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if raw == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: %q must be positive", ErrInvalidAmount, s)
	}

	minor := d.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: %q has more than two decimals", ErrInvalidAmount, s)
	}
	if minor.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %q is too large", ErrInvalidAmount, s)
	}
	return minor.IntPart(), nil
}

// FormatAmount renders minor units with two decimals: 1250 → "12.50".
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
