// file: internals/features/finance/billings/model/fee_rates_model.go
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	housingModel "dormitory_backend/internals/features/housing/model"
	"dormitory_backend/internals/helpers/apperr"
)

// --- ENUM fee_type -----------------------------------------------------------
type FeeType string

const (
	FeeTypeElectricity FeeType = "ELECTRICITY"
	FeeTypeWater       FeeType = "WATER"
	FeeTypeParking     FeeType = "PARKING"
)

var ErrUnknownFeeType = apperr.Validation("unknown_fee_type", "unknown fee type")

func ParseFeeType(s string) (FeeType, error) {
	switch t := FeeType(strings.ToUpper(strings.TrimSpace(s))); t {
	case FeeTypeElectricity, FeeTypeWater, FeeTypeParking:
		return t, nil
	}
	return "", ErrUnknownFeeType.WithField("fee_type").WithDetail("%q", s)
}

// --- MODEL fee_rates ---------------------------------------------------------

// FeeRate prices one unit of a fee type. At most one active, open-ended
// rate may exist per (fee type, vehicle type).
type FeeRate struct {
	FeeRateID uint64 `json:"fee_rate_id" gorm:"column:fee_rate_id;primaryKey;autoIncrement"`

	FeeRateFeeType     FeeType                   `json:"fee_rate_fee_type" gorm:"column:fee_rate_fee_type;type:varchar(20);not null;index:idx_fee_rates_lookup,priority:1"`
	FeeRateVehicleType *housingModel.VehicleType `json:"fee_rate_vehicle_type,omitempty" gorm:"column:fee_rate_vehicle_type;type:varchar(20);index:idx_fee_rates_lookup,priority:2"`
	FeeRateUnitPrice   decimal.Decimal           `json:"fee_rate_unit_price" gorm:"column:fee_rate_unit_price;type:numeric(14,2);not null"`

	// Effective window; EffectiveTo nil = open-ended
	FeeRateEffectiveFrom time.Time  `json:"fee_rate_effective_from" gorm:"column:fee_rate_effective_from;type:date;not null"`
	FeeRateEffectiveTo   *time.Time `json:"fee_rate_effective_to,omitempty" gorm:"column:fee_rate_effective_to;type:date"`
	FeeRateIsActive      bool       `json:"fee_rate_is_active" gorm:"column:fee_rate_is_active;not null;index:idx_fee_rates_lookup,priority:3"`

	FeeRateDescription *string `json:"fee_rate_description,omitempty" gorm:"column:fee_rate_description;type:text"`

	FeeRateCreatedAt time.Time `json:"fee_rate_created_at" gorm:"column:fee_rate_created_at;not null;autoCreateTime"`
	FeeRateUpdatedAt time.Time `json:"fee_rate_updated_at" gorm:"column:fee_rate_updated_at;not null;autoUpdateTime"`
}

func (FeeRate) TableName() string { return "fee_rates" }

// OpenEnded reports whether the rate has no end date.
func (r *FeeRate) OpenEnded() bool { return r.FeeRateEffectiveTo == nil }

// CoversAt reports whether at falls inside [from, to].
func (r *FeeRate) CoversAt(at time.Time) bool {
	if at.Before(r.FeeRateEffectiveFrom) {
		return false
	}
	return r.FeeRateEffectiveTo == nil || !at.After(*r.FeeRateEffectiveTo)
}
