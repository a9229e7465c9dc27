// file: internals/features/finance/invoices/dto/invoice_dto.go
package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"dormitory_backend/internals/features/finance/invoices/model"
	"dormitory_backend/internals/features/finance/invoices/service"
	paymentModel "dormitory_backend/internals/features/finance/payments/model"
)

const dateLayout = "2006-01-02"

/* =========================================================
   Requests
========================================================= */

type ItemRequest struct {
	Type        string          `json:"type" validate:"required"`
	Description string          `json:"description" validate:"omitempty,max=500"`
	Amount      decimal.Decimal `json:"amount"`
}

type CreateInvoiceRequest struct {
	StudentProfileID *uint64 `json:"student_profile_id,omitempty"`
	RoomID           *uint64 `json:"room_id,omitempty"`

	Month  int    `json:"month" validate:"required,min=1,max=12"`
	Year   int    `json:"year" validate:"required,min=2000,max=2100"`
	Source string `json:"source,omitempty"`

	IssueDate       string `json:"issue_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DueDate         string `json:"due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PaymentDeadline string `json:"payment_deadline,omitempty" validate:"omitempty,datetime=2006-01-02"`

	Items []ItemRequest `json:"items" validate:"dive"`
	Notes *string       `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type ReplaceItemsRequest struct {
	Items []ItemRequest `json:"items" validate:"dive"`

	// Optional audited override of the derived status.
	Status *string `json:"status,omitempty"`
	Reason string  `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type UpdateMetadataRequest struct {
	DueDate         *string `json:"due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PaymentDeadline *string `json:"payment_deadline,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Notes           *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type CancelInvoiceRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type ManualPaymentRequest struct {
	Method  string          `json:"method" validate:"required"`
	Amount  decimal.Decimal `json:"amount"`
	PayerID *uint64         `json:"payer_id,omitempty"`
	Note    *string         `json:"note,omitempty" validate:"omitempty,max=500"`
	PaidAt  *time.Time      `json:"paid_at,omitempty"`
}

/* =========================================================
   Mapping
========================================================= */

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(dateLayout, s) // format checked by the validator
	return t
}

func toItems(in []ItemRequest) ([]service.ItemInput, error) {
	out := make([]service.ItemInput, 0, len(in))
	for _, it := range in {
		typ, err := model.ParseItemType(it.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, service.ItemInput{Type: typ, Description: it.Description, Amount: it.Amount})
	}
	return out, nil
}

func (r CreateInvoiceRequest) ToInput() (service.CreateInvoiceInput, error) {
	items, err := toItems(r.Items)
	if err != nil {
		return service.CreateInvoiceInput{}, err
	}
	src := model.InvoiceSourceManual
	if r.Source != "" {
		if src, err = model.ParseInvoiceSource(r.Source); err != nil {
			return service.CreateInvoiceInput{}, err
		}
	}
	period, err := model.NewPeriod(r.Month, r.Year)
	if err != nil {
		return service.CreateInvoiceInput{}, err
	}
	return service.CreateInvoiceInput{
		Owner:           service.Owner{StudentProfileID: r.StudentProfileID, RoomID: r.RoomID},
		Period:          period,
		Source:          src,
		IssueDate:       parseDate(r.IssueDate),
		DueDate:         parseDate(r.DueDate),
		PaymentDeadline: parseDate(r.PaymentDeadline),
		Items:           items,
		Notes:           r.Notes,
	}, nil
}

func (r ReplaceItemsRequest) ToInput(actor string) ([]service.ItemInput, *service.StatusOverride, error) {
	items, err := toItems(r.Items)
	if err != nil {
		return nil, nil, err
	}
	if r.Status == nil {
		return items, nil, nil
	}
	st, err := model.ParseInvoiceStatus(*r.Status)
	if err != nil {
		return nil, nil, err
	}
	return items, &service.StatusOverride{Status: st, Reason: r.Reason, Actor: actor}, nil
}

func (r UpdateMetadataRequest) ToInput() service.MetadataInput {
	var in service.MetadataInput
	if r.DueDate != nil {
		t := parseDate(*r.DueDate)
		in.DueDate = &t
	}
	if r.PaymentDeadline != nil {
		t := parseDate(*r.PaymentDeadline)
		in.PaymentDeadline = &t
	}
	in.Notes = r.Notes
	return in
}

func (r ManualPaymentRequest) ToInput() service.ManualPaymentInput {
	in := service.ManualPaymentInput{
		Method:  paymentModel.PaymentMethod(r.Method),
		Amount:  r.Amount,
		PayerID: r.PayerID,
		Note:    r.Note,
	}
	if r.PaidAt != nil {
		in.PaidAt = *r.PaidAt
	}
	return in
}

/* =========================================================
   Responses
========================================================= */

type ItemResponse struct {
	ID          uint64          `json:"id"`
	Type        model.ItemType  `json:"type"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type InvoiceResponse struct {
	ID               uint64              `json:"id"`
	StudentProfileID *uint64             `json:"student_profile_id,omitempty"`
	RoomID           *uint64             `json:"room_id,omitempty"`
	Month            int16               `json:"month"`
	Year             int16               `json:"year"`
	Source           model.InvoiceSource `json:"source"`
	IssueDate        string              `json:"issue_date"`
	DueDate          string              `json:"due_date"`
	PaymentDeadline  string              `json:"payment_deadline"`
	TotalAmount      decimal.Decimal     `json:"total_amount"`
	PaidAmount       decimal.Decimal     `json:"paid_amount"`
	Outstanding      decimal.Decimal     `json:"outstanding"`
	Status           model.InvoiceStatus `json:"status"`
	Notes            *string             `json:"notes,omitempty"`
	Items            []ItemResponse      `json:"items,omitempty"`
}

func FromModel(m *model.Invoice) InvoiceResponse {
	out := InvoiceResponse{
		ID:               m.InvoiceID,
		StudentProfileID: m.InvoiceStudentProfileID,
		RoomID:           m.InvoiceRoomID,
		Month:            m.InvoiceMonth,
		Year:             m.InvoiceYear,
		Source:           m.InvoiceSource,
		IssueDate:        m.InvoiceIssueDate.Format(dateLayout),
		DueDate:          m.InvoiceDueDate.Format(dateLayout),
		PaymentDeadline:  m.InvoicePaymentDeadline.Format(dateLayout),
		TotalAmount:      m.InvoiceTotalAmount,
		PaidAmount:       m.InvoicePaidAmount,
		Outstanding:      m.Outstanding(),
		Status:           m.InvoiceStatus,
		Notes:            m.InvoiceNotes,
	}
	for _, it := range m.Items {
		out.Items = append(out.Items, ItemResponse{
			ID:          it.InvoiceItemID,
			Type:        it.InvoiceItemType,
			Description: it.InvoiceItemDescription,
			Amount:      it.InvoiceItemAmount,
		})
	}
	return out
}

func FromModels(ms []model.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, 0, len(ms))
	for i := range ms {
		out = append(out, FromModel(&ms[i]))
	}
	return out
}

type ManualPaymentResponse struct {
	PaymentID uint64                     `json:"payment_id"`
	Amount    decimal.Decimal            `json:"amount"`
	Method    paymentModel.PaymentMethod `json:"method"`
	Invoice   InvoiceResponse            `json:"invoice"`
}
