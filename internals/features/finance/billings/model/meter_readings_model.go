// file: internals/features/finance/billings/model/meter_readings_model.go
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dormitory_backend/internals/helpers/apperr"
)

type UtilityType string

const (
	UtilityElectricity UtilityType = "ELECTRICITY"
	UtilityWater       UtilityType = "WATER"
)

var ErrUnknownUtilityType = apperr.Validation("unknown_utility_type", "unknown utility type")

func ParseUtilityType(s string) (UtilityType, error) {
	switch t := UtilityType(strings.ToUpper(strings.TrimSpace(s))); t {
	case UtilityElectricity, UtilityWater:
		return t, nil
	}
	return "", ErrUnknownUtilityType.WithField("type").WithDetail("%q", s)
}

// FeeType is the fee rate pricing this utility.
func (t UtilityType) FeeType() FeeType {
	if t == UtilityWater {
		return FeeTypeWater
	}
	return FeeTypeElectricity
}

// UtilityMeterReading is one index reading per (room, type, month, year).
type UtilityMeterReading struct {
	MeterReadingID     uint64          `json:"meter_reading_id" gorm:"column:meter_reading_id;primaryKey;autoIncrement"`
	MeterReadingRoomID uint64          `json:"meter_reading_room_id" gorm:"column:meter_reading_room_id;not null;uniqueIndex:uq_meter_readings_room_type_period,priority:1"`
	MeterReadingType   UtilityType     `json:"meter_reading_type" gorm:"column:meter_reading_type;type:varchar(20);not null;uniqueIndex:uq_meter_readings_room_type_period,priority:2"`
	MeterReadingMonth  int16           `json:"meter_reading_month" gorm:"column:meter_reading_month;type:smallint;not null;uniqueIndex:uq_meter_readings_room_type_period,priority:4"`
	MeterReadingYear   int16           `json:"meter_reading_year" gorm:"column:meter_reading_year;type:smallint;not null;uniqueIndex:uq_meter_readings_room_type_period,priority:3"`
	MeterReadingDate   time.Time       `json:"meter_reading_date" gorm:"column:meter_reading_date;type:date;not null"`
	MeterReadingIndex  decimal.Decimal `json:"meter_reading_index" gorm:"column:meter_reading_index;type:numeric(14,2);not null"`

	MeterReadingCreatedAt time.Time `json:"meter_reading_created_at" gorm:"column:meter_reading_created_at;not null;autoCreateTime"`
	MeterReadingUpdatedAt time.Time `json:"meter_reading_updated_at" gorm:"column:meter_reading_updated_at;not null;autoUpdateTime"`
}

func (UtilityMeterReading) TableName() string { return "utility_meter_readings" }
