package model

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"dormitory_backend/internals/helpers/apperr"
)

var (
	ErrInvalidDateFormat = apperr.Validation("invalid_date_format", "timestamp must be yyyyMMddHHmmss")
	ErrInvalidRequest    = apperr.Validation("invalid_gateway_request", "gateway request failed validation")

	reTimestamp = regexp.MustCompile(`^\d{14}$`)
	validate    = validator.New()
)

// PaymentURLRequest carries the per-call fields of an outbound payment URL.
// Merchant code, currency, locale default and command come from config.
type PaymentURLRequest struct {
	InvoiceRef string          `validate:"required,numeric"`
	Amount     decimal.Decimal `validate:"-"`
	ReturnURL  string          `validate:"required,url"`
	ClientIP   string          `validate:"required,ip"`
	OrderInfo  string          `validate:"required,max=255"`

	OrderType  string `validate:"omitempty,max=40"`
	Locale     string `validate:"omitempty,oneof=vn en"`
	BankCode   string `validate:"omitempty,alphanum,max=20"`
	CreateDate string // filled with now when empty
	ExpireDate string
}

// QueryRequest asks the gateway for the state of one transaction.
type QueryRequest struct {
	TxnRef          string `validate:"required,numeric"`
	TransactionNo   string `validate:"omitempty,numeric"`
	TransactionDate string `validate:"required"`
	OrderInfo       string `validate:"required,max=255"`
	ClientIP        string `validate:"required,ip"`
	// Locale of the result message; empty uses the merchant default.
	Locale          string `validate:"omitempty,oneof=vn en"`
}

// RefundRequest asks the gateway to refund (part of) a settled transaction.
type RefundRequest struct {
	TxnRef          string          `validate:"required,numeric"`
	Amount          decimal.Decimal `validate:"-"`
	TransactionType string          `validate:"required,oneof=02 03"`
	TransactionNo   string          `validate:"omitempty,numeric"`
	TransactionDate string          `validate:"required"`
	CreatedBy       string          `validate:"required,max=250"`
	OrderInfo       string          `validate:"required,max=255"`
	ClientIP        string          `validate:"required,ip"`
	Locale          string          `validate:"omitempty,oneof=vn en"`
}

func (r PaymentURLRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if r.CreateDate != "" {
		if err := ValidateTimestamp("create_date", r.CreateDate); err != nil {
			return err
		}
	}
	if r.ExpireDate != "" {
		if err := ValidateTimestamp("expire_date", r.ExpireDate); err != nil {
			return err
		}
	}
	return nil
}

func (r QueryRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	return ValidateTimestamp("transaction_date", r.TransactionDate)
}

func (r RefundRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	return ValidateTimestamp("transaction_date", r.TransactionDate)
}

// ValidateTimestamp checks the fixed-width yyyyMMddHHmmss shape and that it
// names a real instant.
func ValidateTimestamp(field, s string) error {
	if !reTimestamp.MatchString(s) {
		return ErrInvalidDateFormat.WithField(field).WithDetail("%q", s)
	}
	if _, err := time.Parse(TimestampLayout, s); err != nil {
		return ErrInvalidDateFormat.WithField(field).WithDetail("%q", s)
	}
	return nil
}

// FormatTimestamp renders t in the gateway's layout and location.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(TimestampLayout)
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
		fe := ve[0]
		return ErrInvalidRequest.WithField(strings.ToLower(fe.Field())).WithDetail("failed %q", fe.Tag())
	}
	return ErrInvalidRequest.Wrap(err)
}
