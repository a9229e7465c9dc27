package service

import "dormitory_backend/internals/helpers/apperr"

var (
	ErrOwnershipConflict      = apperr.Integrity("ownership_conflict", "exactly one of student or room must own the invoice")
	ErrOwnerNotFound          = apperr.Integrity("owner_not_found", "invoice owner does not exist")
	ErrEmptyInvoice           = apperr.Validation("empty_invoice", "invoice needs at least one item")
	ErrInvalidItem            = apperr.Validation("invalid_item", "invoice item is invalid")
	ErrInvalidSchedule        = apperr.Validation("invalid_schedule", "due date and payment deadline must not precede the issue date")
	ErrInvoiceNotFound        = apperr.NotFound("invoice_not_found", "invoice not found")
	ErrNegativeAmount         = apperr.Validation("negative_amount", "amount must be greater than zero")
	ErrInvalidTransition      = apperr.Integrity("invalid_status_transition", "invoice status does not allow this action")
	ErrOverrideReasonRequired = apperr.Validation("override_reason_required", "a status override needs a reason")
)
