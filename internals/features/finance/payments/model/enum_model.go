package model

import (
	"strings"

	"dormitory_backend/internals/helpers/apperr"
)

type PaymentStatus string
type PaymentMethod string
type PaymentProvider string

const (
	PaymentStatusPending PaymentStatus = "PENDING" // created before redirecting to the gateway
	PaymentStatusSettled PaymentStatus = "SETTLED" // confirmed and applied to the invoice
	PaymentStatusFailed  PaymentStatus = "FAILED"  // gateway reported failure
)

const (
	PaymentMethodGateway      PaymentMethod = "GATEWAY"
	PaymentMethodSnap         PaymentMethod = "SNAP"
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

const (
	ProviderGateway  PaymentProvider = "gateway"
	ProviderMidtrans PaymentProvider = "midtrans"
	ProviderManual   PaymentProvider = "manual"
)

var (
	ErrUnknownPaymentMethod = apperr.Validation("unknown_payment_method", "unknown payment method")
	ErrUnknownPaymentStatus = apperr.Validation("unknown_payment_status", "unknown payment status")
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case PaymentMethodGateway, PaymentMethodSnap, PaymentMethodCash, PaymentMethodBankTransfer:
		return m, nil
	}
	return "", ErrUnknownPaymentMethod.WithField("method").WithDetail("%q", s)
}

// ParseManualMethod accepts only the methods an admin may record by hand.
func ParseManualMethod(s string) (PaymentMethod, error) {
	m, err := ParsePaymentMethod(s)
	if err != nil {
		return "", err
	}
	if m != PaymentMethodCash && m != PaymentMethodBankTransfer {
		return "", ErrUnknownPaymentMethod.WithField("method").WithDetail("%q is not a manual method", s)
	}
	return m, nil
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case PaymentStatusPending, PaymentStatusSettled, PaymentStatusFailed:
		return st, nil
	}
	return "", ErrUnknownPaymentStatus.WithField("status").WithDetail("%q", s)
}

// Provider is the provider that settles payments made with m.
func (m PaymentMethod) Provider() PaymentProvider {
	switch m {
	case PaymentMethodGateway:
		return ProviderGateway
	case PaymentMethodSnap:
		return ProviderMidtrans
	}
	return ProviderManual
}
