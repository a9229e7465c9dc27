// file: internals/features/finance/payments/dto/payment_dto.go
package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	gwService "dormitory_backend/internals/features/finance/gateway/service"
	model "dormitory_backend/internals/features/finance/payments/model"
)

const (
	ProviderGateway = "gateway"
	ProviderSnap    = "snap"
)

/* =========================================================
   Requests
========================================================= */

type CustomerRequest struct {
	FirstName string `json:"first_name" validate:"omitempty,max=50"`
	LastName  string `json:"last_name" validate:"omitempty,max=50"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"omitempty,max=20"`
}

// CheckoutRequest: provider kosong = gateway.
type CheckoutRequest struct {
	Provider string           `json:"provider" validate:"omitempty,oneof=gateway snap"`
	PayerID  *uint64          `json:"payer_id,omitempty"`
	Customer *CustomerRequest `json:"customer,omitempty"`
}

func (r CheckoutRequest) CustomerInput() gwService.CustomerInput {
	if r.Customer == nil {
		return gwService.CustomerInput{}
	}
	return gwService.CustomerInput{
		FirstName: r.Customer.FirstName,
		LastName:  r.Customer.LastName,
		Email:     r.Customer.Email,
		Phone:     r.Customer.Phone,
	}
}

// RefundRequest: amount kosong = refund penuh.
type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

/* =========================================================
   Responses
========================================================= */

type PaymentResponse struct {
	ID              uint64                `json:"id"`
	InvoiceID       uint64                `json:"invoice_id"`
	PayerID         *uint64               `json:"payer_id,omitempty"`
	Amount          decimal.Decimal       `json:"amount"`
	Method          model.PaymentMethod   `json:"method"`
	Provider        model.PaymentProvider `json:"provider"`
	Status          model.PaymentStatus   `json:"status"`
	TransactionCode *string               `json:"transaction_code,omitempty"`
	OrderRef        *string               `json:"order_ref,omitempty"`
	Note            *string               `json:"note,omitempty"`
	PaidAt          *time.Time            `json:"paid_at,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

func FromPayment(m *model.Payment) PaymentResponse {
	return PaymentResponse{
		ID:              m.PaymentID,
		InvoiceID:       m.PaymentInvoiceID,
		PayerID:         m.PaymentPayerID,
		Amount:          m.PaymentAmount,
		Method:          m.PaymentMethod,
		Provider:        m.PaymentProvider,
		Status:          m.PaymentStatus,
		TransactionCode: m.PaymentTransactionCode,
		OrderRef:        m.PaymentOrderRef,
		Note:            m.PaymentNote,
		PaidAt:          m.PaymentPaidAt,
		CreatedAt:       m.PaymentCreatedAt,
	}
}

func FromPayments(ms []model.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(ms))
	for i := range ms {
		out = append(out, FromPayment(&ms[i]))
	}
	return out
}

type GatewayEventResponse struct {
	ID         uuid.UUID             `json:"id"`
	Provider   model.PaymentProvider `json:"provider"`
	Channel    string                `json:"channel"`
	OrderRef   *string               `json:"order_ref,omitempty"`
	PaymentID  *uint64               `json:"payment_id,omitempty"`
	Payload    datatypes.JSONMap     `json:"payload"`
	Verified   bool                  `json:"verified"`
	Outcome    string                `json:"outcome"`
	Error      *string               `json:"error,omitempty"`
	ReceivedAt time.Time             `json:"received_at"`
}

func FromGatewayEvents(ms []model.PaymentGatewayEvent) []GatewayEventResponse {
	out := make([]GatewayEventResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, GatewayEventResponse{
			ID:         m.GatewayEventID,
			Provider:   m.GatewayEventProvider,
			Channel:    m.GatewayEventChannel,
			OrderRef:   m.GatewayEventOrderRef,
			PaymentID:  m.GatewayEventPaymentID,
			Payload:    m.GatewayEventPayload,
			Verified:   m.GatewayEventVerified,
			Outcome:    m.GatewayEventOutcome,
			Error:      m.GatewayEventError,
			ReceivedAt: m.GatewayEventReceivedAt,
		})
	}
	return out
}
