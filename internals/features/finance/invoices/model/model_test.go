package model

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		total, paid string
		want        InvoiceStatus
	}{
		{"1000000", "0", InvoiceStatusUnpaid},
		{"1000000", "400000", InvoiceStatusPartiallyPaid},
		{"1000000", "1000000", InvoiceStatusPaid},
		{"1000000", "1200000", InvoiceStatusPaid},
		{"0", "0", InvoiceStatusCancelled},
		{"0", "5000", InvoiceStatusPaid},
		{"10.50", "10.49", InvoiceStatusPartiallyPaid},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, DeriveStatus(d(c.total), d(c.paid)), "%s/%s", c.total, c.paid)
	}
}

func TestParseEnums(t *testing.T) {
	st, err := ParseInvoiceStatus(" partially_paid ")
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusPartiallyPaid, st)

	_, err = ParseInvoiceStatus("paid-ish")
	assert.True(t, errors.Is(err, ErrUnknownInvoiceStatus))
	_, err = ParseInvoiceStatus("")
	assert.True(t, errors.Is(err, ErrUnknownInvoiceStatus))

	it, err := ParseItemType("water")
	require.NoError(t, err)
	assert.Equal(t, ItemTypeWater, it)
	_, err = ParseItemType("gas")
	assert.True(t, errors.Is(err, ErrUnknownItemType))

	src, err := ParseInvoiceSource("utility")
	require.NoError(t, err)
	assert.Equal(t, InvoiceSourceUtility, src)
	_, err = ParseInvoiceSource("x")
	assert.True(t, errors.Is(err, ErrUnknownInvoiceSource))
}

func TestPeriodPrevious(t *testing.T) {
	assert.Equal(t, Period{Month: 12, Year: 2023}, Period{Month: 1, Year: 2024}.Previous())
	assert.Equal(t, Period{Month: 4, Year: 2024}, Period{Month: 5, Year: 2024}.Previous())
}

func TestPeriodValidate(t *testing.T) {
	_, err := NewPeriod(13, 2024)
	assert.True(t, errors.Is(err, ErrInvalidPeriod))
	_, err = NewPeriod(0, 2024)
	assert.True(t, errors.Is(err, ErrInvalidPeriod))
	_, err = NewPeriod(5, 1999)
	assert.True(t, errors.Is(err, ErrInvalidPeriod))
	p, err := NewPeriod(5, 2024)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Month)
}

func TestInvoiceOutstanding(t *testing.T) {
	inv := Invoice{InvoiceTotalAmount: d("1000"), InvoicePaidAmount: d("250")}
	assert.True(t, inv.Outstanding().Equal(d("750")))
	inv.InvoicePaidAmount = d("1200")
	assert.True(t, inv.Outstanding().IsZero())
}
