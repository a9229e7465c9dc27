package securehash

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"dormitory_backend/internals/helpers/apperr"
)

// ScaleFactor turns a ledger amount into the integer form the gateway sees.
const ScaleFactor int64 = 100

var (
	ErrInvalidAmount = apperr.Validation("invalid_amount", "amount must be a positive integer after scaling")
	scale            = decimal.NewFromInt(ScaleFactor)
)

// ToMinorUnits scales amount for the gateway. The result must be a
// positive integer that fits in int64.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	scaled := amount.Mul(scale)
	if scaled.Sign() <= 0 {
		return 0, ErrInvalidAmount.WithField("amount").WithDetail("%s is not positive", amount)
	}
	if !scaled.IsInteger() {
		return 0, ErrInvalidAmount.WithField("amount").WithDetail("%s has more precision than the gateway carries", amount)
	}
	if scaled.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, ErrInvalidAmount.WithField("amount").WithDetail("%s overflows", amount)
	}
	return scaled.IntPart(), nil
}

// FromMinorUnits parses an inbound gateway amount and descales it.
// Non-numeric, negative or fractional input is rejected.
func FromMinorUnits(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrInvalidAmount.WithField("amount").WithDetail("empty")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount.WithField("amount").WithDetail("%q is not numeric", raw)
	}
	if d.Sign() < 0 || !d.IsInteger() {
		return decimal.Zero, ErrInvalidAmount.WithField("amount").WithDetail("%q is not a non-negative integer", raw)
	}
	return d.Div(scale), nil
}
