// Package service holds the billing inputs (fee rates, meter readings) and
// the engine that turns them into invoices.
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
	housingModel "dormitory_backend/internals/features/housing/model"
)

/* =========================================================
   Fee rates
========================================================= */

type FeeRates struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewFeeRates(db *gorm.DB, log *zap.Logger) *FeeRates {
	if log == nil {
		log = zap.NewNop()
	}
	return &FeeRates{db: db, log: log.Named("fee_rates")}
}

type CreateFeeRateInput struct {
	FeeType       model.FeeType
	VehicleType   *housingModel.VehicleType
	UnitPrice     decimal.Decimal
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	Description   *string
	// Activate runs the activation check in the same transaction.
	Activate bool
}

type FeeRateFilter struct {
	FeeType    *model.FeeType
	ActiveOnly bool
}

func rateEntity(id uint64) string { return "fee_rate:" + strconv.FormatUint(id, 10) }

func dateUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validateRate(in *CreateFeeRateInput) error {
	ft, err := model.ParseFeeType(string(in.FeeType))
	if err != nil {
		return err
	}
	in.FeeType = ft

	if ft == model.FeeTypeParking {
		if in.VehicleType == nil {
			return ErrInvalidFeeRate.WithField("vehicle_type").WithDetail("parking rates need a vehicle type")
		}
		vt, err := housingModel.ParseVehicleType(string(*in.VehicleType))
		if err != nil {
			return err
		}
		in.VehicleType = &vt
	} else if in.VehicleType != nil {
		return ErrInvalidFeeRate.WithField("vehicle_type").WithDetail("only parking rates take a vehicle type")
	}

	if !in.UnitPrice.IsPositive() {
		return ErrInvalidFeeRate.WithField("unit_price").WithDetail("must be greater than zero")
	}
	if in.EffectiveFrom.IsZero() {
		return ErrInvalidFeeRate.WithField("effective_from").WithDetail("required")
	}
	in.EffectiveFrom = dateUTC(in.EffectiveFrom)
	if in.EffectiveTo != nil {
		to := dateUTC(*in.EffectiveTo)
		if to.Before(in.EffectiveFrom) {
			return ErrInvalidFeeRate.WithField("effective_to").WithDetail("before effective_from")
		}
		in.EffectiveTo = &to
	}
	return nil
}

// rateKey names the (fee type, vehicle type) pair for advisory locking.
func rateKey(ft model.FeeType, vt *housingModel.VehicleType) string {
	if vt == nil {
		return "fee_rate:" + string(ft)
	}
	return "fee_rate:" + string(ft) + ":" + string(*vt)
}

// sameKey narrows q to rates of the same (fee type, vehicle type).
func sameKey(q *gorm.DB, ft model.FeeType, vt *housingModel.VehicleType) *gorm.DB {
	q = q.Where("fee_rate_fee_type = ?", ft)
	if vt == nil {
		return q.Where("fee_rate_vehicle_type IS NULL")
	}
	return q.Where("fee_rate_vehicle_type = ?", *vt)
}

// ensureNoActiveOpenEnded locks every rate of the key (so two concurrent
// activations serialize) and fails when another one is active and
// open-ended.
func ensureNoActiveOpenEnded(tx *gorm.DB, r *model.FeeRate) error {
	// row locks cover nothing while the key has no rows yet
	if err := advisoryLock(tx, rateKey(r.FeeRateFeeType, r.FeeRateVehicleType)); err != nil {
		return err
	}
	var rows []model.FeeRate
	if err := sameKey(tx.Clauses(clause.Locking{Strength: "UPDATE"}), r.FeeRateFeeType, r.FeeRateVehicleType).
		Order("fee_rate_id ASC").
		Find(&rows).Error; err != nil {
		return err
	}
	for _, other := range rows {
		if other.FeeRateID == r.FeeRateID {
			continue
		}
		if other.FeeRateIsActive && other.OpenEnded() {
			return ErrDuplicateActiveRate.WithEntity(rateEntity(other.FeeRateID))
		}
	}
	return nil
}

func lockRate(tx *gorm.DB, id uint64) (*model.FeeRate, error) {
	var r model.FeeRate
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&r, "fee_rate_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFeeRateNotFound.WithEntity(rateEntity(id))
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create stores a rate, inactive unless in.Activate is set.
func (s *FeeRates) Create(ctx context.Context, in CreateFeeRateInput) (*model.FeeRate, error) {
	if err := validateRate(&in); err != nil {
		return nil, err
	}
	r := model.FeeRate{
		FeeRateFeeType:       in.FeeType,
		FeeRateVehicleType:   in.VehicleType,
		FeeRateUnitPrice:     in.UnitPrice,
		FeeRateEffectiveFrom: in.EffectiveFrom,
		FeeRateEffectiveTo:   in.EffectiveTo,
		FeeRateDescription:   in.Description,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.Activate {
			r.FeeRateIsActive = true
			if r.OpenEnded() {
				if err := ensureNoActiveOpenEnded(tx, &r); err != nil {
					return err
				}
			}
		}
		return tx.Create(&r).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("fee rate created",
		zap.Uint64("fee_rate_id", r.FeeRateID),
		zap.String("fee_type", string(r.FeeRateFeeType)),
		zap.Bool("active", r.FeeRateIsActive))
	return &r, nil
}

// Activate marks a rate active. An open-ended rate is refused while another
// active open-ended rate of the same key exists; that rate is left as is.
func (s *FeeRates) Activate(ctx context.Context, id uint64) (*model.FeeRate, error) {
	var out *model.FeeRate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// key lock before the row lock, the same order Create takes them
		var key model.FeeRate
		if err := tx.Select("fee_rate_id", "fee_rate_fee_type", "fee_rate_vehicle_type").
			First(&key, "fee_rate_id = ?", id).Error; err == nil {
			if err := advisoryLock(tx, rateKey(key.FeeRateFeeType, key.FeeRateVehicleType)); err != nil {
				return err
			}
		}
		r, err := lockRate(tx, id)
		if err != nil {
			return err
		}
		if r.FeeRateIsActive {
			out = r
			return nil
		}
		if r.OpenEnded() {
			if err := ensureNoActiveOpenEnded(tx, r); err != nil {
				return err
			}
		}
		if err := tx.Model(r).Update("fee_rate_is_active", true).Error; err != nil {
			return err
		}
		r.FeeRateIsActive = true
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("fee rate activated", zap.Uint64("fee_rate_id", id))
	return out, nil
}

func (s *FeeRates) Deactivate(ctx context.Context, id uint64) (*model.FeeRate, error) {
	var out *model.FeeRate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := lockRate(tx, id)
		if err != nil {
			return err
		}
		if r.FeeRateIsActive {
			if err := tx.Model(r).Update("fee_rate_is_active", false).Error; err != nil {
				return err
			}
			r.FeeRateIsActive = false
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("fee rate deactivated", zap.Uint64("fee_rate_id", id))
	return out, nil
}

// Close ends the rate's window at `to`, which frees the key for a new
// open-ended rate.
func (s *FeeRates) Close(ctx context.Context, id uint64, to time.Time) (*model.FeeRate, error) {
	if to.IsZero() {
		return nil, ErrInvalidFeeRate.WithField("effective_to").WithDetail("required")
	}
	to = dateUTC(to)
	var out *model.FeeRate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := lockRate(tx, id)
		if err != nil {
			return err
		}
		if to.Before(r.FeeRateEffectiveFrom) {
			return ErrInvalidFeeRate.WithField("effective_to").WithDetail("before effective_from")
		}
		if err := tx.Model(r).Update("fee_rate_effective_to", to).Error; err != nil {
			return err
		}
		r.FeeRateEffectiveTo = &to
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FeeRates) Get(ctx context.Context, id uint64) (*model.FeeRate, error) {
	var r model.FeeRate
	err := s.db.WithContext(ctx).First(&r, "fee_rate_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFeeRateNotFound.WithEntity(rateEntity(id))
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *FeeRates) List(ctx context.Context, f FeeRateFilter) ([]model.FeeRate, error) {
	q := s.db.WithContext(ctx).Model(&model.FeeRate{})
	if f.FeeType != nil {
		q = q.Where("fee_rate_fee_type = ?", *f.FeeType)
	}
	if f.ActiveOnly {
		q = q.Where("fee_rate_is_active = ?", true)
	}
	var out []model.FeeRate
	if err := q.Order("fee_rate_fee_type ASC, fee_rate_effective_from DESC, fee_rate_id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveRate returns the active rate of (feeType, vehicleType) whose window
// covers at; the latest effective_from wins.
func (s *FeeRates) ActiveRate(ctx context.Context, ft model.FeeType, vt *housingModel.VehicleType, at time.Time) (*model.FeeRate, error) {
	return activeRate(s.db.WithContext(ctx), ft, vt, at)
}

func activeRate(db *gorm.DB, ft model.FeeType, vt *housingModel.VehicleType, at time.Time) (*model.FeeRate, error) {
	day := dateUTC(at)
	var r model.FeeRate
	err := sameKey(db.Model(&model.FeeRate{}), ft, vt).
		Where("fee_rate_is_active = ?", true).
		Where("fee_rate_effective_from <= ?", day).
		Where("(fee_rate_effective_to IS NULL OR fee_rate_effective_to >= ?)", day).
		Order("fee_rate_effective_from DESC, fee_rate_id DESC").
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		key := string(ft)
		if vt != nil {
			key += "/" + string(*vt)
		}
		return nil, ErrNoActiveRate.WithEntity(key)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
