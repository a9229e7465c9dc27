// file: internals/features/finance/billings/dto/billing_dto.go
package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"dormitory_backend/internals/features/finance/billings/model"
	"dormitory_backend/internals/features/finance/billings/service"
	invoiceModel "dormitory_backend/internals/features/finance/invoices/model"
	housingModel "dormitory_backend/internals/features/housing/model"
)

const dateLayout = "2006-01-02"

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(dateLayout, s) // format checked by the validator
	return t
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

/* =========================================================
   Billing runs
========================================================= */

type RunBillingRequest struct {
	Month int `json:"month" validate:"required,min=1,max=12"`
	Year  int `json:"year" validate:"required,min=2000,max=2100"`
}

func (r RunBillingRequest) Period() invoiceModel.Period {
	return invoiceModel.Period{Month: r.Month, Year: r.Year}
}

type RunBillingResponse struct {
	Source  invoiceModel.InvoiceSource `json:"source"`
	Month   int                        `json:"month"`
	Year    int                        `json:"year"`
	Created int                        `json:"created"`
}

/* =========================================================
   Fee rates
========================================================= */

type CreateFeeRateRequest struct {
	FeeType       string          `json:"fee_type" validate:"required"`
	VehicleType   *string         `json:"vehicle_type,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	EffectiveFrom string          `json:"effective_from" validate:"required,datetime=2006-01-02"`
	EffectiveTo   *string         `json:"effective_to,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Description   *string         `json:"description,omitempty" validate:"omitempty,max=500"`
	Activate      bool            `json:"activate"`
}

func (r CreateFeeRateRequest) ToInput() service.CreateFeeRateInput {
	in := service.CreateFeeRateInput{
		FeeType:       model.FeeType(r.FeeType),
		UnitPrice:     r.UnitPrice,
		EffectiveFrom: parseDate(r.EffectiveFrom),
		Description:   r.Description,
		Activate:      r.Activate,
	}
	if r.VehicleType != nil {
		vt := housingModel.VehicleType(*r.VehicleType)
		in.VehicleType = &vt
	}
	if r.EffectiveTo != nil {
		to := parseDate(*r.EffectiveTo)
		in.EffectiveTo = &to
	}
	return in
}

type CloseFeeRateRequest struct {
	EffectiveTo string `json:"effective_to" validate:"required,datetime=2006-01-02"`
}

func (r CloseFeeRateRequest) Date() time.Time { return parseDate(r.EffectiveTo) }

type FeeRateResponse struct {
	ID            uint64                    `json:"id"`
	FeeType       model.FeeType             `json:"fee_type"`
	VehicleType   *housingModel.VehicleType `json:"vehicle_type,omitempty"`
	UnitPrice     decimal.Decimal           `json:"unit_price"`
	EffectiveFrom string                    `json:"effective_from"`
	EffectiveTo   *string                   `json:"effective_to,omitempty"`
	IsActive      bool                      `json:"is_active"`
	Description   *string                   `json:"description,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

func FromFeeRate(m *model.FeeRate) FeeRateResponse {
	return FeeRateResponse{
		ID:            m.FeeRateID,
		FeeType:       m.FeeRateFeeType,
		VehicleType:   m.FeeRateVehicleType,
		UnitPrice:     m.FeeRateUnitPrice,
		EffectiveFrom: m.FeeRateEffectiveFrom.Format(dateLayout),
		EffectiveTo:   formatDate(m.FeeRateEffectiveTo),
		IsActive:      m.FeeRateIsActive,
		Description:   m.FeeRateDescription,
		CreatedAt:     m.FeeRateCreatedAt,
		UpdatedAt:     m.FeeRateUpdatedAt,
	}
}

func FromFeeRates(ms []model.FeeRate) []FeeRateResponse {
	out := make([]FeeRateResponse, 0, len(ms))
	for i := range ms {
		out = append(out, FromFeeRate(&ms[i]))
	}
	return out
}

/* =========================================================
   Meter readings
========================================================= */

type UpsertMeterReadingRequest struct {
	RoomID uint64          `json:"room_id" validate:"required"`
	Type   string          `json:"type" validate:"required"`
	Month  int             `json:"month" validate:"required,min=1,max=12"`
	Year   int             `json:"year" validate:"required,min=2000,max=2100"`
	Date   string          `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Index  decimal.Decimal `json:"index"`
}

func (r UpsertMeterReadingRequest) ToInput() service.UpsertReadingInput {
	return service.UpsertReadingInput{
		RoomID: r.RoomID,
		Type:   model.UtilityType(r.Type),
		Period: invoiceModel.Period{Month: r.Month, Year: r.Year},
		Date:   parseDate(r.Date),
		Index:  r.Index,
	}
}

type MeterReadingResponse struct {
	ID     uint64            `json:"id"`
	RoomID uint64            `json:"room_id"`
	Type   model.UtilityType `json:"type"`
	Month  int16             `json:"month"`
	Year   int16             `json:"year"`
	Date   string            `json:"date"`
	Index  decimal.Decimal   `json:"index"`
}

func FromMeterReading(m *model.UtilityMeterReading) MeterReadingResponse {
	return MeterReadingResponse{
		ID:     m.MeterReadingID,
		RoomID: m.MeterReadingRoomID,
		Type:   m.MeterReadingType,
		Month:  m.MeterReadingMonth,
		Year:   m.MeterReadingYear,
		Date:   m.MeterReadingDate.Format(dateLayout),
		Index:  m.MeterReadingIndex,
	}
}

func FromMeterReadings(ms []model.UtilityMeterReading) []MeterReadingResponse {
	out := make([]MeterReadingResponse, 0, len(ms))
	for i := range ms {
		out = append(out, FromMeterReading(&ms[i]))
	}
	return out
}
