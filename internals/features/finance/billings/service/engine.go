package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"dormitory_backend/internals/features/finance/billings/model"
	invoiceModel "dormitory_backend/internals/features/finance/invoices/model"
	invoiceService "dormitory_backend/internals/features/finance/invoices/service"
	housingModel "dormitory_backend/internals/features/housing/model"
	"dormitory_backend/internals/observability/metrics"
)

/*
  Engine generates a period's invoices from three independent sources.
  Each pass runs in one transaction: an error rolls back that pass only.
  A pass refuses to run twice for the same (period, source).
*/

type Engine struct {
	db     *gorm.DB
	ledger *invoiceService.Ledger
	log    *zap.Logger
}

func NewEngine(db *gorm.DB, ledger *invoiceService.Ledger, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{db: db, ledger: ledger, log: log.Named("billing_engine")}
}

type passFunc func(ctx context.Context, tx *gorm.DB, l *invoiceService.Ledger, p invoiceModel.Period) (int, error)

func periodEntity(p invoiceModel.Period, source invoiceModel.InvoiceSource) string {
	return fmt.Sprintf("%s:%04d-%02d", source, p.Year, p.Month)
}

// advisoryLock holds a transaction-scoped Postgres lock on key. Other
// dialects have no equivalent and run unlocked.
func advisoryLock(tx *gorm.DB, key string) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error
}

// lockPass serializes concurrent runs of the same pass on Postgres.
func lockPass(tx *gorm.DB, key string) error {
	return advisoryLock(tx, "billing:"+key)
}

func (e *Engine) run(ctx context.Context, p invoiceModel.Period, source invoiceModel.InvoiceSource, fn passFunc) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	key := periodEntity(p, source)
	log := e.log.With(zap.String("pass", key))

	created := 0
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPass(tx, key); err != nil {
			return err
		}
		l := e.ledger.WithTx(tx)
		exists, err := l.ExistsForPeriod(ctx, p, source)
		if err != nil {
			return err
		}
		if exists {
			return ErrPeriodAlreadyBilled.WithEntity(key)
		}
		n, err := fn(ctx, tx, l, p)
		if err != nil {
			return err
		}
		created = n
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPeriodAlreadyBilled) {
			log.Info("pass skipped, period already billed")
		} else {
			log.Error("pass rolled back", zap.Error(err))
		}
		return 0, err
	}

	metrics.AddInvoicesGenerated(string(source), created)
	log.Info("pass done", zap.Int("created", created))
	return created, nil
}

/* =========================================================
   Room fees
========================================================= */

// RunRoomFees bills every RENTING student with a room its room fee.
func (e *Engine) RunRoomFees(ctx context.Context, p invoiceModel.Period) (int, error) {
	return e.run(ctx, p, invoiceModel.InvoiceSourceRoomFee, e.roomFees)
}

func (e *Engine) roomFees(ctx context.Context, tx *gorm.DB, l *invoiceService.Ledger, p invoiceModel.Period) (int, error) {
	var students []housingModel.StudentProfile
	if err := tx.Preload("Room").
		Where("student_profile_status = ? AND student_profile_room_id IS NOT NULL", housingModel.StudentStatusRenting).
		Order("student_profile_id ASC").
		Find(&students).Error; err != nil {
		return 0, err
	}

	created := 0
	for _, s := range students {
		if s.Room == nil || !s.Room.RoomFee.IsPositive() {
			e.log.Warn("room without fee, student skipped", zap.Uint64("student_profile_id", s.StudentProfileID))
			continue
		}
		_, err := l.CreateInvoice(ctx, invoiceService.CreateInvoiceInput{
			Owner:  invoiceService.StudentOwner(s.StudentProfileID),
			Period: p,
			Source: invoiceModel.InvoiceSourceRoomFee,
			Items: []invoiceService.ItemInput{{
				Type:        invoiceModel.ItemTypeRoomFee,
				Description: fmt.Sprintf("Room fee %s %02d/%04d", s.Room.RoomNumber, p.Month, p.Year),
				Amount:      s.Room.RoomFee,
			}},
		})
		if err != nil {
			return 0, err
		}
		created++
	}
	return created, nil
}

/* =========================================================
   Parking fees
========================================================= */

// RunParkingFees bills each active vehicle of a RENTING student with a room
// at the active rate of its type. Types without a rate are skipped.
func (e *Engine) RunParkingFees(ctx context.Context, p invoiceModel.Period) (int, error) {
	return e.run(ctx, p, invoiceModel.InvoiceSourceParking, e.parkingFees)
}

func (e *Engine) parkingFees(ctx context.Context, tx *gorm.DB, l *invoiceService.Ledger, p invoiceModel.Period) (int, error) {
	var vehicles []housingModel.VehicleRegistration
	if err := tx.Model(&housingModel.VehicleRegistration{}).
		Joins("JOIN student_profiles sp ON sp.student_profile_id = vehicle_registrations.vehicle_registration_student_id").
		Where("vehicle_registrations.vehicle_registration_is_active = ?", true).
		Where("sp.student_profile_status = ? AND sp.student_profile_room_id IS NOT NULL", housingModel.StudentStatusRenting).
		Order("vehicle_registrations.vehicle_registration_id ASC").
		Find(&vehicles).Error; err != nil {
		return 0, err
	}

	at := p.Start(nil)
	rates := map[housingModel.VehicleType]*model.FeeRate{}
	created := 0
	for _, v := range vehicles {
		rate, seen := rates[v.VehicleRegistrationType]
		if !seen {
			vt := v.VehicleRegistrationType
			r, err := activeRate(tx, model.FeeTypeParking, &vt, at)
			switch {
			case errors.Is(err, ErrNoActiveRate):
				e.log.Warn("no parking rate, vehicles skipped", zap.String("vehicle_type", string(vt)))
			case err != nil:
				return 0, err
			}
			rates[vt] = r
			rate = r
		}
		if rate == nil {
			continue
		}
		_, err := l.CreateInvoice(ctx, invoiceService.CreateInvoiceInput{
			Owner:  invoiceService.StudentOwner(v.VehicleRegistrationStudentID),
			Period: p,
			Source: invoiceModel.InvoiceSourceParking,
			Items: []invoiceService.ItemInput{{
				Type:        invoiceModel.ItemTypeParking,
				Description: fmt.Sprintf("Parking %s %s %02d/%04d", v.VehicleRegistrationType, v.VehicleRegistrationPlate, p.Month, p.Year),
				Amount:      rate.FeeRateUnitPrice,
			}},
		})
		if err != nil {
			return 0, err
		}
		created++
	}
	return created, nil
}

/* =========================================================
   Utilities
========================================================= */

// RunUtilities bills each room with readings in p for its metered
// consumption. Rooms whose charges are all zero get no invoice.
func (e *Engine) RunUtilities(ctx context.Context, p invoiceModel.Period) (int, error) {
	return e.run(ctx, p, invoiceModel.InvoiceSourceUtility, e.utilities)
}

func utilityItemType(t model.UtilityType) invoiceModel.ItemType {
	if t == model.UtilityWater {
		return invoiceModel.ItemTypeWater
	}
	return invoiceModel.ItemTypeElectricity
}

func (e *Engine) utilities(ctx context.Context, tx *gorm.DB, l *invoiceService.Ledger, p invoiceModel.Period) (int, error) {
	readings, err := readingsOf(tx, p, nil)
	if err != nil {
		return 0, err
	}
	byRoom := lo.GroupBy(readings, func(r model.UtilityMeterReading) uint64 { return r.MeterReadingRoomID })
	rooms := lo.Uniq(lo.Map(readings, func(r model.UtilityMeterReading, _ int) uint64 { return r.MeterReadingRoomID }))

	at := p.Start(nil)
	rates := map[model.UtilityType]*model.FeeRate{}
	rateOf := func(t model.UtilityType) (*model.FeeRate, error) {
		if r, ok := rates[t]; ok {
			return r, nil
		}
		r, err := activeRate(tx, t.FeeType(), nil, at)
		if errors.Is(err, ErrNoActiveRate) {
			e.log.Warn("no utility rate, charges skipped", zap.String("type", string(t)))
			err = nil
		}
		if err != nil {
			return nil, err
		}
		rates[t] = r
		return r, nil
	}

	created := 0
	for _, roomID := range rooms {
		var items []invoiceService.ItemInput
		for _, rd := range byRoom[roomID] {
			prev, err := previousIndex(tx, roomID, rd.MeterReadingType, p)
			if err != nil {
				return 0, err
			}
			units, err := consumed(roomID, rd.MeterReadingIndex, prev)
			if err != nil {
				return 0, err
			}
			rate, err := rateOf(rd.MeterReadingType)
			if err != nil {
				return 0, err
			}
			if rate == nil {
				continue
			}
			charge := units.Mul(rate.FeeRateUnitPrice).Round(2)
			if charge.IsZero() {
				continue
			}
			items = append(items, invoiceService.ItemInput{
				Type:        utilityItemType(rd.MeterReadingType),
				Description: utilityDescription(rd.MeterReadingType, prev, rd.MeterReadingIndex, units, rate.FeeRateUnitPrice),
				Amount:      charge,
			})
		}
		if len(items) == 0 {
			continue
		}
		if _, err := l.CreateInvoice(ctx, invoiceService.CreateInvoiceInput{
			Owner:  invoiceService.RoomOwner(roomID),
			Period: p,
			Source: invoiceModel.InvoiceSourceUtility,
			Items:  items,
		}); err != nil {
			return 0, err
		}
		created++
	}
	return created, nil
}

func utilityDescription(t model.UtilityType, prev *decimal.Decimal, cur, units, price decimal.Decimal) string {
	from := "0"
	if prev != nil {
		from = prev.String()
	}
	return fmt.Sprintf("%s %s-%s (%s x %s)", t, from, cur.String(), units.String(), price.String())
}
