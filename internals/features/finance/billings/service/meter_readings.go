package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dormitory_backend/internals/features/finance/billings/model"
	invoiceModel "dormitory_backend/internals/features/finance/invoices/model"
	housingModel "dormitory_backend/internals/features/housing/model"
)

type MeterReadings struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewMeterReadings(db *gorm.DB, log *zap.Logger) *MeterReadings {
	if log == nil {
		log = zap.NewNop()
	}
	return &MeterReadings{db: db, log: log.Named("meter_readings")}
}

type UpsertReadingInput struct {
	RoomID uint64
	Type   model.UtilityType
	Period invoiceModel.Period
	// Zero means the first day of Period.
	Date  time.Time
	Index decimal.Decimal
}

// Consumption is current minus previous index; with no previous reading
// the full current index is consumed.
type Consumption struct {
	RoomID   uint64              `json:"room_id"`
	Type     model.UtilityType   `json:"type"`
	Period   invoiceModel.Period `json:"period"`
	Current  decimal.Decimal     `json:"current_index"`
	Previous *decimal.Decimal    `json:"previous_index,omitempty"`
	Units    decimal.Decimal     `json:"units"`
}

func roomEntity(id uint64) string { return "room:" + strconv.FormatUint(id, 10) }

// Upsert writes the reading of (room, type, period), replacing the index
// and date of an existing one.
func (s *MeterReadings) Upsert(ctx context.Context, in UpsertReadingInput) (*model.UtilityMeterReading, error) {
	ut, err := model.ParseUtilityType(string(in.Type))
	if err != nil {
		return nil, err
	}
	if err := in.Period.Validate(); err != nil {
		return nil, err
	}
	if in.Index.IsNegative() {
		return nil, ErrInvalidReading.WithField("index").WithDetail("must be non-negative")
	}
	date := in.Period.Start(time.UTC)
	if !in.Date.IsZero() {
		date = dateUTC(in.Date)
	}

	row := model.UtilityMeterReading{
		MeterReadingRoomID: in.RoomID,
		MeterReadingType:   ut,
		MeterReadingMonth:  int16(in.Period.Month),
		MeterReadingYear:   int16(in.Period.Year),
		MeterReadingDate:   date,
		MeterReadingIndex:  in.Index,
	}

	var out model.UtilityMeterReading
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room housingModel.Room
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).Select("room_id").First(&room, "room_id = ?", in.RoomID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotFound.WithEntity(roomEntity(in.RoomID))
		}
		if err != nil {
			return err
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "meter_reading_room_id"},
				{Name: "meter_reading_type"},
				{Name: "meter_reading_year"},
				{Name: "meter_reading_month"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"meter_reading_date", "meter_reading_index", "meter_reading_updated_at",
			}),
		}).Create(&row).Error; err != nil {
			return err
		}
		return tx.Where(
			"meter_reading_room_id = ? AND meter_reading_type = ? AND meter_reading_year = ? AND meter_reading_month = ?",
			in.RoomID, ut, in.Period.Year, in.Period.Month,
		).First(&out).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("meter reading stored",
		zap.Uint64("room_id", in.RoomID),
		zap.String("type", string(ut)),
		zap.Int("month", in.Period.Month),
		zap.Int("year", in.Period.Year))
	return &out, nil
}

func (s *MeterReadings) ListByPeriod(ctx context.Context, p invoiceModel.Period, roomID *uint64) ([]model.UtilityMeterReading, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return readingsOf(s.db.WithContext(ctx), p, roomID)
}

func readingsOf(db *gorm.DB, p invoiceModel.Period, roomID *uint64) ([]model.UtilityMeterReading, error) {
	q := db.Where("meter_reading_month = ? AND meter_reading_year = ?", p.Month, p.Year)
	if roomID != nil {
		q = q.Where("meter_reading_room_id = ?", *roomID)
	}
	var out []model.UtilityMeterReading
	if err := q.Order("meter_reading_room_id ASC, meter_reading_type ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Consumption computes the units used by a room in p.
func (s *MeterReadings) Consumption(ctx context.Context, roomID uint64, t model.UtilityType, p invoiceModel.Period) (*Consumption, error) {
	ut, err := model.ParseUtilityType(string(t))
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	var cur model.UtilityMeterReading
	err = db.Where(
		"meter_reading_room_id = ? AND meter_reading_type = ? AND meter_reading_year = ? AND meter_reading_month = ?",
		roomID, ut, p.Year, p.Month,
	).First(&cur).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReadingNotFound.WithEntity(roomEntity(roomID))
	}
	if err != nil {
		return nil, err
	}
	prev, err := previousIndex(db, roomID, ut, p)
	if err != nil {
		return nil, err
	}
	units, err := consumed(roomID, cur.MeterReadingIndex, prev)
	if err != nil {
		return nil, err
	}
	return &Consumption{RoomID: roomID, Type: ut, Period: p, Current: cur.MeterReadingIndex, Previous: prev, Units: units}, nil
}

// previousIndex is the index of the prior calendar month, nil if unread.
func previousIndex(db *gorm.DB, roomID uint64, t model.UtilityType, p invoiceModel.Period) (*decimal.Decimal, error) {
	pp := p.Previous()
	var prev model.UtilityMeterReading
	err := db.Where(
		"meter_reading_room_id = ? AND meter_reading_type = ? AND meter_reading_year = ? AND meter_reading_month = ?",
		roomID, t, pp.Year, pp.Month,
	).First(&prev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &prev.MeterReadingIndex, nil
}

func consumed(roomID uint64, current decimal.Decimal, previous *decimal.Decimal) (decimal.Decimal, error) {
	if previous == nil {
		return current, nil
	}
	units := current.Sub(*previous)
	if units.IsNegative() {
		return decimal.Zero, ErrNegativeConsumption.
			WithEntity(roomEntity(roomID)).
			WithDetail("current %s < previous %s", current.String(), previous.String())
	}
	return units, nil
}
