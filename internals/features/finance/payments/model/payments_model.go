// file: internals/features/finance/payments/model/payments_model.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

/* ================================
   MODEL: payments
================================ */

// Payment is one settlement record. Once SETTLED it is never deleted by
// the gateway flow; only its transaction code is (re)written.
type Payment struct {
	PaymentID        uint64  `json:"payment_id" gorm:"column:payment_id;primaryKey;autoIncrement"`
	PaymentInvoiceID uint64  `json:"payment_invoice_id" gorm:"column:payment_invoice_id;not null;index:idx_payments_invoice_method,priority:1"`
	PaymentPayerID   *uint64 `json:"payment_payer_id,omitempty" gorm:"column:payment_payer_id;index"`

	PaymentAmount   decimal.Decimal `json:"payment_amount" gorm:"column:payment_amount;type:numeric(14,2);not null"`
	PaymentMethod   PaymentMethod   `json:"payment_method" gorm:"column:payment_method;type:varchar(20);not null;index:idx_payments_invoice_method,priority:2"`
	PaymentProvider PaymentProvider `json:"payment_provider" gorm:"column:payment_provider;type:varchar(20);not null"`
	PaymentStatus   PaymentStatus   `json:"payment_status" gorm:"column:payment_status;type:varchar(20);not null;default:'PENDING';index"`

	// Unique among SETTLED payments only: gateways reuse codes such as "0"
	// for every failed or cancelled transaction.
	PaymentTransactionCode *string `json:"payment_transaction_code,omitempty" gorm:"column:payment_transaction_code;type:varchar(64);uniqueIndex:uq_payments_settled_transaction_code,where:payment_status = 'SETTLED'"`
	// Provider-side order id when it differs from the invoice id (Snap).
	PaymentOrderRef *string `json:"payment_order_ref,omitempty" gorm:"column:payment_order_ref;type:varchar(64);index"`
	PaymentNote     *string `json:"payment_note,omitempty" gorm:"column:payment_note;type:text"`

	PaymentPaidAt    *time.Time `json:"payment_paid_at,omitempty" gorm:"column:payment_paid_at"`
	PaymentCreatedAt time.Time  `json:"payment_created_at" gorm:"column:payment_created_at;not null;autoCreateTime"`
	PaymentUpdatedAt time.Time  `json:"payment_updated_at" gorm:"column:payment_updated_at;not null;autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }
