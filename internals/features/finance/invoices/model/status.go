package model

import "github.com/shopspring/decimal"

// DeriveStatus is the only rule mapping (total, paid) to a status.
//
//	total == 0    -> CANCELLED when nothing was paid, else PAID
//	paid >= total -> PAID
//	paid > 0      -> PARTIALLY_PAID
//	otherwise     -> UNPAID
func DeriveStatus(total, paid decimal.Decimal) InvoiceStatus {
	switch {
	case total.IsZero():
		if paid.IsZero() {
			return InvoiceStatusCancelled
		}
		return InvoiceStatusPaid
	case paid.GreaterThanOrEqual(total):
		return InvoiceStatusPaid
	case paid.IsPositive():
		return InvoiceStatusPartiallyPaid
	}
	return InvoiceStatusUnpaid
}
