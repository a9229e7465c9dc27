// file: internals/features/finance/invoices/model/invoice_model.go
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Invoice is one bill owed by exactly one of {student, room}.
// InvoicePaidAmount is written only by the ledger.
type Invoice struct {
	InvoiceID uint64 `json:"invoice_id" gorm:"column:invoice_id;primaryKey;autoIncrement"`

	// Owner (XOR)
	InvoiceStudentProfileID *uint64 `json:"invoice_student_profile_id,omitempty" gorm:"column:invoice_student_profile_id;index:idx_invoices_student"`
	InvoiceRoomID           *uint64 `json:"invoice_room_id,omitempty" gorm:"column:invoice_room_id;index:idx_invoices_room"`

	// Period + source
	InvoiceMonth  int16         `json:"invoice_month" gorm:"column:invoice_month;type:smallint;not null;index:idx_invoices_period_source,priority:2"`
	InvoiceYear   int16         `json:"invoice_year" gorm:"column:invoice_year;type:smallint;not null;index:idx_invoices_period_source,priority:1"`
	InvoiceSource InvoiceSource `json:"invoice_source" gorm:"column:invoice_source;type:varchar(20);not null;default:'MANUAL';index:idx_invoices_period_source,priority:3"`

	// Schedule
	InvoiceIssueDate       time.Time `json:"invoice_issue_date" gorm:"column:invoice_issue_date;type:date;not null"`
	InvoiceDueDate         time.Time `json:"invoice_due_date" gorm:"column:invoice_due_date;type:date;not null"`
	InvoicePaymentDeadline time.Time `json:"invoice_payment_deadline" gorm:"column:invoice_payment_deadline;type:date;not null"`

	// Money
	InvoiceTotalAmount decimal.Decimal `json:"invoice_total_amount" gorm:"column:invoice_total_amount;type:numeric(14,2);not null;default:0"`
	InvoicePaidAmount  decimal.Decimal `json:"invoice_paid_amount" gorm:"column:invoice_paid_amount;type:numeric(14,2);not null;default:0"`
	InvoiceStatus      InvoiceStatus   `json:"invoice_status" gorm:"column:invoice_status;type:varchar(20);not null;default:'UNPAID';index:idx_invoices_status"`

	InvoiceNotes *string `json:"invoice_notes,omitempty" gorm:"column:invoice_notes;type:text"`

	InvoiceCreatedAt time.Time `json:"invoice_created_at" gorm:"column:invoice_created_at;not null;autoCreateTime"`
	InvoiceUpdatedAt time.Time `json:"invoice_updated_at" gorm:"column:invoice_updated_at;not null;autoUpdateTime"`

	Items []InvoiceItem `json:"items,omitempty" gorm:"foreignKey:InvoiceItemInvoiceID;references:InvoiceID"`
}

func (Invoice) TableName() string { return "invoices" }

// BeforeSave mirrors the owner XOR check constraint.
func (i *Invoice) BeforeSave(tx *gorm.DB) error {
	if (i.InvoiceStudentProfileID == nil) == (i.InvoiceRoomID == nil) {
		return fmt.Errorf("exactly one of invoice_student_profile_id or invoice_room_id must be set")
	}
	if i.InvoiceTotalAmount.IsNegative() || i.InvoicePaidAmount.IsNegative() {
		return fmt.Errorf("invoice amounts must be non-negative")
	}
	return nil
}

func (i *Invoice) Period() Period {
	return Period{Month: int(i.InvoiceMonth), Year: int(i.InvoiceYear)}
}

// Outstanding is total - paid, floored at zero.
func (i *Invoice) Outstanding() decimal.Decimal {
	d := i.InvoiceTotalAmount.Sub(i.InvoicePaidAmount)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// InvoiceItem is one priced line, owned by exactly one invoice.
type InvoiceItem struct {
	InvoiceItemID          uint64          `json:"invoice_item_id" gorm:"column:invoice_item_id;primaryKey;autoIncrement"`
	InvoiceItemInvoiceID   uint64          `json:"invoice_item_invoice_id" gorm:"column:invoice_item_invoice_id;not null;index:idx_invoice_items_invoice"`
	InvoiceItemType        ItemType        `json:"invoice_item_type" gorm:"column:invoice_item_type;type:varchar(20);not null"`
	InvoiceItemDescription string          `json:"invoice_item_description" gorm:"column:invoice_item_description;type:text;not null"`
	InvoiceItemAmount      decimal.Decimal `json:"invoice_item_amount" gorm:"column:invoice_item_amount;type:numeric(14,2);not null"`
	InvoiceItemCreatedAt   time.Time       `json:"invoice_item_created_at" gorm:"column:invoice_item_created_at;not null;autoCreateTime"`
}

func (InvoiceItem) TableName() string { return "invoice_items" }

// InvoiceStatusOverride is the audit trail of a forced status on item
// replacement.
type InvoiceStatusOverride struct {
	InvoiceStatusOverrideID        uint64        `json:"invoice_status_override_id" gorm:"column:invoice_status_override_id;primaryKey;autoIncrement"`
	InvoiceStatusOverrideInvoiceID uint64        `json:"invoice_status_override_invoice_id" gorm:"column:invoice_status_override_invoice_id;not null;index"`
	InvoiceStatusOverrideActor     string        `json:"invoice_status_override_actor" gorm:"column:invoice_status_override_actor;type:varchar(120);not null"`
	InvoiceStatusOverrideFrom      InvoiceStatus `json:"invoice_status_override_from" gorm:"column:invoice_status_override_from;type:varchar(20);not null"`
	InvoiceStatusOverrideDerived   InvoiceStatus `json:"invoice_status_override_derived" gorm:"column:invoice_status_override_derived;type:varchar(20);not null"`
	InvoiceStatusOverrideForced    InvoiceStatus `json:"invoice_status_override_forced" gorm:"column:invoice_status_override_forced;type:varchar(20);not null"`
	InvoiceStatusOverrideReason    string        `json:"invoice_status_override_reason" gorm:"column:invoice_status_override_reason;type:text;not null"`
	InvoiceStatusOverrideCreatedAt time.Time     `json:"invoice_status_override_created_at" gorm:"column:invoice_status_override_created_at;not null;autoCreateTime"`
}

func (InvoiceStatusOverride) TableName() string { return "invoice_status_overrides" }
