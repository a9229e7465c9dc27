// Package service holds the invoice ledger: the only writer of an
// invoice's paid amount and status.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dormitory_backend/internals/features/finance/invoices/model"
	paymentModel "dormitory_backend/internals/features/finance/payments/model"
	housingModel "dormitory_backend/internals/features/housing/model"
	database "dormitory_backend/internals/databases"
)

/* =========================================================
   Inputs
========================================================= */

// Owner is a student profile XOR a room.
type Owner struct {
	StudentProfileID *uint64
	RoomID           *uint64
}

func StudentOwner(id uint64) Owner { return Owner{StudentProfileID: &id} }
func RoomOwner(id uint64) Owner    { return Owner{RoomID: &id} }

func (o Owner) Validate() error {
	if (o.StudentProfileID == nil) == (o.RoomID == nil) {
		return ErrOwnershipConflict
	}
	return nil
}

func (o Owner) String() string {
	if o.StudentProfileID != nil {
		return "student_profile:" + strconv.FormatUint(*o.StudentProfileID, 10)
	}
	if o.RoomID != nil {
		return "room:" + strconv.FormatUint(*o.RoomID, 10)
	}
	return "none"
}

type ItemInput struct {
	Type        model.ItemType
	Description string
	Amount      decimal.Decimal
}

type CreateInvoiceInput struct {
	Owner  Owner
	Period model.Period
	Source model.InvoiceSource

	// Zero values fall back to the ledger schedule.
	IssueDate       time.Time
	DueDate         time.Time
	PaymentDeadline time.Time

	Items []ItemInput
	Notes *string
}

// StatusOverride forces a status on item replacement. It is audited.
type StatusOverride struct {
	Status model.InvoiceStatus
	Reason string
	Actor  string
}

// Schedule supplies default due/deadline offsets.
type Schedule struct {
	DueDays   int
	GraceDays int
}

/* =========================================================
   Ledger
========================================================= */

type Ledger struct {
	db       *gorm.DB
	log      *zap.Logger
	schedule Schedule
	now      func() time.Time
}

func NewLedger(db *gorm.DB, log *zap.Logger, schedule Schedule) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{db: db, log: log.Named("ledger"), schedule: schedule, now: time.Now}
}

// WithTx returns a ledger bound to tx; its operations join tx (as a
// savepoint) instead of opening their own transaction.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	c := *l
	c.db = tx
	return &c
}

func (l *Ledger) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return l.db.WithContext(ctx).Transaction(fn)
}

// lockInvoice reads the invoice row FOR UPDATE.
func lockInvoice(tx *gorm.DB, id uint64) (*model.Invoice, error) {
	var inv model.Invoice
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&inv, "invoice_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvoiceNotFound.WithEntity("invoice:" + strconv.FormatUint(id, 10))
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func validateItems(items []ItemInput) ([]model.InvoiceItem, decimal.Decimal, error) {
	rows := make([]model.InvoiceItem, 0, len(items))
	for i, it := range items {
		t, err := model.ParseItemType(string(it.Type))
		if err != nil {
			return nil, decimal.Zero, ErrInvalidItem.WithField(fmt.Sprintf("items[%d].type", i)).Wrap(err)
		}
		if it.Amount.IsNegative() {
			return nil, decimal.Zero, ErrInvalidItem.WithField(fmt.Sprintf("items[%d].amount", i)).WithDetail("must be non-negative")
		}
		if !it.Amount.Equal(it.Amount.Round(2)) {
			return nil, decimal.Zero, ErrInvalidItem.WithField(fmt.Sprintf("items[%d].amount", i)).WithDetail("at most 2 decimals")
		}
		desc := strings.TrimSpace(it.Description)
		if desc == "" {
			desc = string(t)
		}
		rows = append(rows, model.InvoiceItem{
			InvoiceItemType:        t,
			InvoiceItemDescription: desc,
			InvoiceItemAmount:      it.Amount,
		})
	}
	total := lo.Reduce(rows, func(acc decimal.Decimal, r model.InvoiceItem, _ int) decimal.Decimal {
		return acc.Add(r.InvoiceItemAmount)
	}, decimal.Zero)
	return rows, total, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (l *Ledger) resolveSchedule(in *CreateInvoiceInput) error {
	if in.IssueDate.IsZero() {
		in.IssueDate = dateOnly(l.now())
	}
	if in.DueDate.IsZero() {
		in.DueDate = in.IssueDate.AddDate(0, 0, l.schedule.DueDays)
	}
	if in.PaymentDeadline.IsZero() {
		in.PaymentDeadline = in.DueDate.AddDate(0, 0, l.schedule.GraceDays)
	}
	if in.DueDate.Before(in.IssueDate) {
		return ErrInvalidSchedule.WithField("due_date")
	}
	if in.PaymentDeadline.Before(in.DueDate) {
		return ErrInvalidSchedule.WithField("payment_deadline")
	}
	return nil
}

// ensureOwner checks the owner row exists and holds a share lock on it so
// a concurrent delete waits for this transaction.
func ensureOwner(tx *gorm.DB, o Owner) error {
	var err error
	if o.StudentProfileID != nil {
		var sp housingModel.StudentProfile
		err = tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Select("student_profile_id").
			First(&sp, "student_profile_id = ?", *o.StudentProfileID).Error
	} else {
		var r housingModel.Room
		err = tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Select("room_id").
			First(&r, "room_id = ?", *o.RoomID).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrOwnerNotFound.WithEntity(o.String())
	}
	return err
}

/* =========================================================
   createInvoice
========================================================= */

// CreateInvoice persists invoice + items with paid 0 and status UNPAID in
// one transaction.
func (l *Ledger) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*model.Invoice, error) {
	if err := in.Owner.Validate(); err != nil {
		return nil, err
	}
	if err := in.Period.Validate(); err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, ErrEmptyInvoice
	}
	if in.Source == "" {
		in.Source = model.InvoiceSourceManual
	}
	if _, err := model.ParseInvoiceSource(string(in.Source)); err != nil {
		return nil, err
	}
	items, total, err := validateItems(in.Items)
	if err != nil {
		return nil, err
	}
	if err := l.resolveSchedule(&in); err != nil {
		return nil, err
	}

	inv := &model.Invoice{
		InvoiceStudentProfileID: in.Owner.StudentProfileID,
		InvoiceRoomID:           in.Owner.RoomID,
		InvoiceMonth:            int16(in.Period.Month),
		InvoiceYear:             int16(in.Period.Year),
		InvoiceSource:           in.Source,
		InvoiceIssueDate:        in.IssueDate,
		InvoiceDueDate:          in.DueDate,
		InvoicePaymentDeadline:  in.PaymentDeadline,
		InvoiceTotalAmount:      total,
		InvoicePaidAmount:       decimal.Zero,
		InvoiceStatus:           model.InvoiceStatusUnpaid,
		InvoiceNotes:            in.Notes,
		Items:                   items,
	}

	err = l.transaction(ctx, func(tx *gorm.DB) error {
		if err := ensureOwner(tx, in.Owner); err != nil {
			return err
		}
		if err := tx.Create(inv).Error; err != nil {
			if database.IsForeignKeyViolation(err) {
				return ErrOwnerNotFound.WithEntity(in.Owner.String()).Wrap(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

/* =========================================================
   replaceItems
========================================================= */

// ReplaceItems swaps the item set, recomputes the total and re-derives the
// status from the existing paid amount. A non-nil override forces the
// status and leaves an audit row.
func (l *Ledger) ReplaceItems(ctx context.Context, invoiceID uint64, items []ItemInput, override *StatusOverride) (*model.Invoice, error) {
	rows, total, err := validateItems(items)
	if err != nil {
		return nil, err
	}
	if override != nil {
		if strings.TrimSpace(override.Reason) == "" {
			return nil, ErrOverrideReasonRequired.WithField("reason")
		}
		if _, err := model.ParseInvoiceStatus(string(override.Status)); err != nil {
			return nil, err
		}
	}

	var out *model.Invoice
	err = l.transaction(ctx, func(tx *gorm.DB) error {
		inv, err := lockInvoice(tx, invoiceID)
		if err != nil {
			return err
		}
		if err := tx.Where("invoice_item_invoice_id = ?", invoiceID).Delete(&model.InvoiceItem{}).Error; err != nil {
			return err
		}
		for i := range rows {
			rows[i].InvoiceItemInvoiceID = invoiceID
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}

		derived := model.DeriveStatus(total, inv.InvoicePaidAmount)
		status := derived
		if override != nil {
			status = override.Status
			audit := model.InvoiceStatusOverride{
				InvoiceStatusOverrideInvoiceID: invoiceID,
				InvoiceStatusOverrideActor:     lo.Ternary(override.Actor == "", "system", override.Actor),
				InvoiceStatusOverrideFrom:      inv.InvoiceStatus,
				InvoiceStatusOverrideDerived:   derived,
				InvoiceStatusOverrideForced:    override.Status,
				InvoiceStatusOverrideReason:    strings.TrimSpace(override.Reason),
			}
			if err := tx.Create(&audit).Error; err != nil {
				return err
			}
			l.log.Warn("invoice status overridden",
				zap.Uint64("invoice_id", invoiceID),
				zap.String("derived", string(derived)),
				zap.String("forced", string(override.Status)),
				zap.String("actor", audit.InvoiceStatusOverrideActor))
		}

		if err := tx.Model(inv).Updates(map[string]any{
			"invoice_total_amount": total,
			"invoice_status":       status,
		}).Error; err != nil {
			return err
		}
		inv.InvoiceTotalAmount = total
		inv.InvoiceStatus = status
		inv.Items = rows
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

/* =========================================================
   applyPayment
========================================================= */

// ApplyPayment adds amount to the paid amount and re-derives the status
// under a row lock. Callers guarantee a settled payment is applied once.
func (l *Ledger) ApplyPayment(ctx context.Context, invoiceID uint64, amount decimal.Decimal) (*model.Invoice, error) {
	if !amount.IsPositive() {
		return nil, ErrNegativeAmount.WithField("amount").WithDetail("%s", amount.String())
	}

	var out *model.Invoice
	err := l.transaction(ctx, func(tx *gorm.DB) error {
		inv, err := lockInvoice(tx, invoiceID)
		if err != nil {
			return err
		}
		paid := inv.InvoicePaidAmount.Add(amount)
		status := model.DeriveStatus(inv.InvoiceTotalAmount, paid)
		if inv.InvoiceStatus == model.InvoiceStatusCancelled {
			// terminal: money is recorded, status stays
			status = model.InvoiceStatusCancelled
			l.log.Warn("payment applied to cancelled invoice",
				zap.Uint64("invoice_id", invoiceID), zap.String("amount", amount.String()))
		}
		if paid.GreaterThan(inv.InvoiceTotalAmount) {
			l.log.Warn("invoice overpaid",
				zap.Uint64("invoice_id", invoiceID),
				zap.String("total", inv.InvoiceTotalAmount.String()),
				zap.String("paid", paid.String()))
		}

		if err := tx.Model(inv).Updates(map[string]any{
			"invoice_paid_amount": paid,
			"invoice_status":      status,
		}).Error; err != nil {
			return err
		}
		inv.InvoicePaidAmount = paid
		inv.InvoiceStatus = status
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

/* =========================================================
   deleteInvoice / cancel
========================================================= */

// DeleteInvoice removes payments, items and audit rows, then the invoice.
func (l *Ledger) DeleteInvoice(ctx context.Context, invoiceID uint64) error {
	return l.transaction(ctx, func(tx *gorm.DB) error {
		if _, err := lockInvoice(tx, invoiceID); err != nil {
			return err
		}
		if err := tx.Where("payment_invoice_id = ?", invoiceID).Delete(&paymentModel.Payment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("invoice_item_invoice_id = ?", invoiceID).Delete(&model.InvoiceItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("invoice_status_override_invoice_id = ?", invoiceID).Delete(&model.InvoiceStatusOverride{}).Error; err != nil {
			return err
		}
		return tx.Where("invoice_id = ?", invoiceID).Delete(&model.Invoice{}).Error
	})
}

// CancelInvoice is the only way into CANCELLED for an invoice that still
// has a non-zero total.
func (l *Ledger) CancelInvoice(ctx context.Context, invoiceID uint64, actor, reason string) (*model.Invoice, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrOverrideReasonRequired.WithField("reason")
	}
	var out *model.Invoice
	err := l.transaction(ctx, func(tx *gorm.DB) error {
		inv, err := lockInvoice(tx, invoiceID)
		if err != nil {
			return err
		}
		if !inv.InvoiceStatus.Open() {
			return ErrInvalidTransition.WithEntity("invoice:" + strconv.FormatUint(invoiceID, 10)).
				WithDetail("%s -> CANCELLED", inv.InvoiceStatus)
		}
		audit := model.InvoiceStatusOverride{
			InvoiceStatusOverrideInvoiceID: invoiceID,
			InvoiceStatusOverrideActor:     lo.Ternary(actor == "", "system", actor),
			InvoiceStatusOverrideFrom:      inv.InvoiceStatus,
			InvoiceStatusOverrideDerived:   model.DeriveStatus(inv.InvoiceTotalAmount, inv.InvoicePaidAmount),
			InvoiceStatusOverrideForced:    model.InvoiceStatusCancelled,
			InvoiceStatusOverrideReason:    strings.TrimSpace(reason),
		}
		if err := tx.Create(&audit).Error; err != nil {
			return err
		}
		if err := tx.Model(inv).Update("invoice_status", model.InvoiceStatusCancelled).Error; err != nil {
			return err
		}
		inv.InvoiceStatus = model.InvoiceStatusCancelled
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MetadataInput is an authorized edit of schedule/notes. Nil fields are
// left untouched.
type MetadataInput struct {
	DueDate         *time.Time
	PaymentDeadline *time.Time
	Notes           *string
}

func (l *Ledger) UpdateMetadata(ctx context.Context, invoiceID uint64, in MetadataInput) (*model.Invoice, error) {
	var out *model.Invoice
	err := l.transaction(ctx, func(tx *gorm.DB) error {
		inv, err := lockInvoice(tx, invoiceID)
		if err != nil {
			return err
		}
		patch := map[string]any{}
		due := inv.InvoiceDueDate
		if in.DueDate != nil {
			due = *in.DueDate
			patch["invoice_due_date"] = due
		}
		deadline := inv.InvoicePaymentDeadline
		if in.PaymentDeadline != nil {
			deadline = *in.PaymentDeadline
			patch["invoice_payment_deadline"] = deadline
		}
		if due.Before(inv.InvoiceIssueDate) {
			return ErrInvalidSchedule.WithField("due_date")
		}
		if deadline.Before(due) {
			return ErrInvalidSchedule.WithField("payment_deadline")
		}
		if in.Notes != nil {
			patch["invoice_notes"] = *in.Notes
		}
		if len(patch) > 0 {
			if err := tx.Model(inv).Updates(patch).Error; err != nil {
				return err
			}
		}
		inv.InvoiceDueDate = due
		inv.InvoicePaymentDeadline = deadline
		if in.Notes != nil {
			inv.InvoiceNotes = in.Notes
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

/* =========================================================
   Reads
========================================================= */

func (l *Ledger) Get(ctx context.Context, invoiceID uint64) (*model.Invoice, error) {
	var inv model.Invoice
	err := l.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("invoice_item_id ASC") }).
		First(&inv, "invoice_id = ?", invoiceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvoiceNotFound.WithEntity("invoice:" + strconv.FormatUint(invoiceID, 10))
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListByPeriod returns the period's invoices with items, optionally for
// one source only.
func (l *Ledger) ListByPeriod(ctx context.Context, p model.Period, source *model.InvoiceSource) ([]model.Invoice, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	q := l.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("invoice_item_id ASC") }).
		Where("invoice_month = ? AND invoice_year = ?", p.Month, p.Year)
	if source != nil {
		q = q.Where("invoice_source = ?", *source)
	}
	var out []model.Invoice
	if err := q.Order("invoice_id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ExistsForPeriod is the duplicate check callers run before a billing pass.
func (l *Ledger) ExistsForPeriod(ctx context.Context, p model.Period, source model.InvoiceSource) (bool, error) {
	var n int64
	err := l.db.WithContext(ctx).Model(&model.Invoice{}).
		Where("invoice_month = ? AND invoice_year = ? AND invoice_source = ?", p.Month, p.Year, source).
		Count(&n).Error
	return n > 0, err
}

/* =========================================================
   Manual payments
========================================================= */

type ManualPaymentInput struct {
	Method  paymentModel.PaymentMethod
	Amount  decimal.Decimal
	PayerID *uint64
	Note    *string
	PaidAt  time.Time
}

// RecordManualPayment stores a settled cash/bank-transfer payment and
// applies it to the invoice in the same transaction.
func (l *Ledger) RecordManualPayment(ctx context.Context, invoiceID uint64, in ManualPaymentInput) (*paymentModel.Payment, *model.Invoice, error) {
	method, err := paymentModel.ParseManualMethod(string(in.Method))
	if err != nil {
		return nil, nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, nil, ErrNegativeAmount.WithField("amount").WithDetail("%s", in.Amount.String())
	}
	paidAt := in.PaidAt
	if paidAt.IsZero() {
		paidAt = l.now()
	}

	var (
		pay *paymentModel.Payment
		inv *model.Invoice
	)
	err = l.transaction(ctx, func(tx *gorm.DB) error {
		if _, err := lockInvoice(tx, invoiceID); err != nil {
			return err
		}
		pay = &paymentModel.Payment{
			PaymentInvoiceID: invoiceID,
			PaymentPayerID:   in.PayerID,
			PaymentAmount:    in.Amount,
			PaymentMethod:    method,
			PaymentProvider:  method.Provider(),
			PaymentStatus:    paymentModel.PaymentStatusSettled,
			PaymentNote:      in.Note,
			PaymentPaidAt:    &paidAt,
		}
		if err := tx.Create(pay).Error; err != nil {
			return err
		}
		var err error
		inv, err = l.WithTx(tx).ApplyPayment(ctx, invoiceID, in.Amount)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return pay, inv, nil
}
