package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"dormitory_backend/internals/databases/dbtest"
	"dormitory_backend/internals/features/finance/billings/model"
	invoiceModel "dormitory_backend/internals/features/finance/invoices/model"
	invoiceService "dormitory_backend/internals/features/finance/invoices/service"
	housingModel "dormitory_backend/internals/features/housing/model"
)

var march = invoiceModel.Period{Month: 3, Year: 2024}

type fixture struct {
	db       *gorm.DB
	rates    *FeeRates
	readings *MeterReadings
	engine   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.SQLite(t)
	ledger := invoiceService.NewLedger(db, zap.NewNop(), invoiceService.Schedule{DueDays: 15, GraceDays: 5})
	return &fixture{
		db:       db,
		rates:    NewFeeRates(db, zap.NewNop()),
		readings: NewMeterReadings(db, zap.NewNop()),
		engine:   NewEngine(db, ledger, zap.NewNop()),
	}
}

func amt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func vt(v housingModel.VehicleType) *housingModel.VehicleType { return &v }

func (f *fixture) room(t *testing.T, number string, fee int64) housingModel.Room {
	t.Helper()
	r := housingModel.Room{RoomNumber: number, RoomBuilding: "A", RoomFee: amt(fee)}
	require.NoError(t, f.db.Create(&r).Error)
	return r
}

func (f *fixture) student(t *testing.T, name string, status housingModel.StudentStatus, roomID *uint64) housingModel.StudentProfile {
	t.Helper()
	s := housingModel.StudentProfile{StudentProfileFullName: name, StudentProfileStatus: status, StudentProfileRoomID: roomID}
	require.NoError(t, f.db.Create(&s).Error)
	return s
}

func (f *fixture) vehicle(t *testing.T, studentID uint64, typ housingModel.VehicleType, plate string, active bool) {
	t.Helper()
	v := housingModel.VehicleRegistration{
		VehicleRegistrationStudentID: studentID,
		VehicleRegistrationType:      typ,
		VehicleRegistrationPlate:     plate,
		VehicleRegistrationIsActive:  active,
	}
	require.NoError(t, f.db.Create(&v).Error)
}

func (f *fixture) rate(t *testing.T, ft model.FeeType, v *housingModel.VehicleType, price int64) *model.FeeRate {
	t.Helper()
	r, err := f.rates.Create(context.Background(), CreateFeeRateInput{
		FeeType: ft, VehicleType: v, UnitPrice: amt(price), EffectiveFrom: day(2024, 1, 1), Activate: true,
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) reading(t *testing.T, roomID uint64, typ model.UtilityType, p invoiceModel.Period, index int64) {
	t.Helper()
	_, err := f.readings.Upsert(context.Background(), UpsertReadingInput{RoomID: roomID, Type: typ, Period: p, Index: amt(index)})
	require.NoError(t, err)
}

func (f *fixture) invoices(t *testing.T, source invoiceModel.InvoiceSource) []invoiceModel.Invoice {
	t.Helper()
	var out []invoiceModel.Invoice
	require.NoError(t, f.db.Preload("Items").
		Where("invoice_source = ?", source).
		Order("invoice_id ASC").
		Find(&out).Error)
	return out
}

/* =========================================================
   Fee rates
========================================================= */

func TestActivateRefusesSecondOpenEndedRate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.rate(t, model.FeeTypeElectricity, nil, 3000)
	second, err := f.rates.Create(ctx, CreateFeeRateInput{
		FeeType: model.FeeTypeElectricity, UnitPrice: amt(3500), EffectiveFrom: day(2024, 4, 1),
	})
	require.NoError(t, err)
	assert.False(t, second.FeeRateIsActive)

	_, err = f.rates.Activate(ctx, second.FeeRateID)
	assert.True(t, errors.Is(err, ErrDuplicateActiveRate))

	got, err := f.rates.Get(ctx, first.FeeRateID)
	require.NoError(t, err)
	assert.True(t, got.FeeRateIsActive, "existing rate must stay active")

	_, err = f.rates.Create(ctx, CreateFeeRateInput{
		FeeType: model.FeeTypeElectricity, UnitPrice: amt(4000), EffectiveFrom: day(2024, 5, 1), Activate: true,
	})
	assert.True(t, errors.Is(err, ErrDuplicateActiveRate))

	// a water rate is a different key
	f.rate(t, model.FeeTypeWater, nil, 10000)

	_, err = f.rates.Close(ctx, first.FeeRateID, day(2024, 3, 31))
	require.NoError(t, err)
	activated, err := f.rates.Activate(ctx, second.FeeRateID)
	require.NoError(t, err)
	assert.True(t, activated.FeeRateIsActive)
}

func TestParkingRatesAreKeyedByVehicleType(t *testing.T) {
	f := newFixture(t)
	f.rate(t, model.FeeTypeParking, vt(housingModel.VehicleTypeMotorbike), 100000)
	f.rate(t, model.FeeTypeParking, vt(housingModel.VehicleTypeBicycle), 30000)

	_, err := f.rates.Create(context.Background(), CreateFeeRateInput{
		FeeType: model.FeeTypeParking, VehicleType: vt(housingModel.VehicleTypeMotorbike),
		UnitPrice: amt(1), EffectiveFrom: day(2024, 1, 1), Activate: true,
	})
	assert.True(t, errors.Is(err, ErrDuplicateActiveRate))
}

func TestCreateFeeRateValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]CreateFeeRateInput{
		"parking without vehicle":  {FeeType: model.FeeTypeParking, UnitPrice: amt(1), EffectiveFrom: day(2024, 1, 1)},
		"utility with vehicle":     {FeeType: model.FeeTypeWater, VehicleType: vt(housingModel.VehicleTypeCar), UnitPrice: amt(1), EffectiveFrom: day(2024, 1, 1)},
		"zero price":               {FeeType: model.FeeTypeWater, UnitPrice: decimal.Zero, EffectiveFrom: day(2024, 1, 1)},
		"missing effective from":   {FeeType: model.FeeTypeWater, UnitPrice: amt(1)},
		"window ends before start": {FeeType: model.FeeTypeWater, UnitPrice: amt(1), EffectiveFrom: day(2024, 2, 1), EffectiveTo: ptrTime(day(2024, 1, 1))},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.rates.Create(context.Background(), in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidFeeRate), err.Error())
		})
	}

	_, err := f.rates.Create(context.Background(), CreateFeeRateInput{FeeType: "GAS", UnitPrice: amt(1), EffectiveFrom: day(2024, 1, 1)})
	assert.True(t, errors.Is(err, model.ErrUnknownFeeType))
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestActiveRateWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.rates.Create(ctx, CreateFeeRateInput{
		FeeType: model.FeeTypeWater, UnitPrice: amt(10000),
		EffectiveFrom: day(2024, 1, 1), EffectiveTo: ptrTime(day(2024, 3, 31)), Activate: true,
	})
	require.NoError(t, err)

	got, err := f.rates.ActiveRate(ctx, model.FeeTypeWater, nil, day(2024, 3, 15))
	require.NoError(t, err)
	assert.Equal(t, r.FeeRateID, got.FeeRateID)

	_, err = f.rates.ActiveRate(ctx, model.FeeTypeWater, nil, day(2024, 4, 1))
	assert.True(t, errors.Is(err, ErrNoActiveRate))
	_, err = f.rates.ActiveRate(ctx, model.FeeTypeWater, nil, day(2023, 12, 31))
	assert.True(t, errors.Is(err, ErrNoActiveRate))

	_, err = f.rates.Deactivate(ctx, r.FeeRateID)
	require.NoError(t, err)
	_, err = f.rates.ActiveRate(ctx, model.FeeTypeWater, nil, day(2024, 3, 15))
	assert.True(t, errors.Is(err, ErrNoActiveRate))

	_, err = f.rates.Activate(ctx, 999)
	assert.True(t, errors.Is(err, ErrFeeRateNotFound))
}

/* =========================================================
   Meter readings
========================================================= */

func TestUpsertReadingReplacesSamePeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, "A101", 1500000)

	f.reading(t, room.RoomID, model.UtilityElectricity, march, 140)
	got, err := f.readings.Upsert(ctx, UpsertReadingInput{
		RoomID: room.RoomID, Type: "electricity", Period: march, Date: day(2024, 3, 28), Index: amt(150),
	})
	require.NoError(t, err)
	assert.True(t, got.MeterReadingIndex.Equal(amt(150)))
	assert.Equal(t, "2024-03-28", got.MeterReadingDate.Format("2006-01-02"))

	rows, err := f.readings.ListByPeriod(ctx, march, &room.RoomID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].MeterReadingIndex.Equal(amt(150)))

	_, err = f.readings.Upsert(ctx, UpsertReadingInput{RoomID: 999, Type: model.UtilityWater, Period: march, Index: amt(1)})
	assert.True(t, errors.Is(err, ErrRoomNotFound))
	_, err = f.readings.Upsert(ctx, UpsertReadingInput{RoomID: room.RoomID, Type: model.UtilityWater, Period: march, Index: amt(-1)})
	assert.True(t, errors.Is(err, ErrInvalidReading))
	_, err = f.readings.Upsert(ctx, UpsertReadingInput{RoomID: room.RoomID, Type: model.UtilityWater, Period: invoiceModel.Period{Month: 13, Year: 2024}, Index: amt(1)})
	assert.True(t, errors.Is(err, invoiceModel.ErrInvalidPeriod))
}

func TestConsumption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, "A101", 1500000)

	f.reading(t, room.RoomID, model.UtilityElectricity, invoiceModel.Period{Month: 2, Year: 2024}, 120)
	f.reading(t, room.RoomID, model.UtilityElectricity, march, 150)
	c, err := f.readings.Consumption(ctx, room.RoomID, model.UtilityElectricity, march)
	require.NoError(t, err)
	assert.True(t, c.Units.Equal(amt(30)))
	require.NotNil(t, c.Previous)
	assert.True(t, c.Previous.Equal(amt(120)))

	// no previous reading: the whole index is consumed
	f.reading(t, room.RoomID, model.UtilityWater, march, 12)
	c, err = f.readings.Consumption(ctx, room.RoomID, model.UtilityWater, march)
	require.NoError(t, err)
	assert.Nil(t, c.Previous)
	assert.True(t, c.Units.Equal(amt(12)))

	// January reads December of the prior year
	f.reading(t, room.RoomID, model.UtilityWater, invoiceModel.Period{Month: 12, Year: 2023}, 40)
	f.reading(t, room.RoomID, model.UtilityWater, invoiceModel.Period{Month: 1, Year: 2024}, 45)
	c, err = f.readings.Consumption(ctx, room.RoomID, model.UtilityWater, invoiceModel.Period{Month: 1, Year: 2024})
	require.NoError(t, err)
	assert.True(t, c.Units.Equal(amt(5)))

	f.reading(t, room.RoomID, model.UtilityElectricity, invoiceModel.Period{Month: 4, Year: 2024}, 100)
	_, err = f.readings.Consumption(ctx, room.RoomID, model.UtilityElectricity, invoiceModel.Period{Month: 4, Year: 2024})
	assert.True(t, errors.Is(err, ErrNegativeConsumption))

	_, err = f.readings.Consumption(ctx, room.RoomID, model.UtilityElectricity, invoiceModel.Period{Month: 6, Year: 2024})
	assert.True(t, errors.Is(err, ErrReadingNotFound))
}

/* =========================================================
   Engine
========================================================= */

func TestRunRoomFees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.room(t, "A101", 1500000)
	b := f.room(t, "B202", 1200000)

	renting := f.student(t, "Tran Thi B", housingModel.StudentStatusRenting, &a.RoomID)
	f.student(t, "Le Van C", housingModel.StudentStatusRenting, &b.RoomID)
	f.student(t, "Applicant", housingModel.StudentStatusApplying, &b.RoomID)
	f.student(t, "No room", housingModel.StudentStatusRenting, nil)
	f.student(t, "Gone", housingModel.StudentStatusCheckedOut, &a.RoomID)

	n, err := f.engine.RunRoomFees(ctx, march)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	invs := f.invoices(t, invoiceModel.InvoiceSourceRoomFee)
	require.Len(t, invs, 2)
	assert.Equal(t, renting.StudentProfileID, *invs[0].InvoiceStudentProfileID)
	assert.Nil(t, invs[0].InvoiceRoomID)
	assert.True(t, invs[0].InvoiceTotalAmount.Equal(amt(1500000)))
	assert.Equal(t, invoiceModel.InvoiceStatusUnpaid, invs[0].InvoiceStatus)
	require.Len(t, invs[0].Items, 1)
	assert.Equal(t, invoiceModel.ItemTypeRoomFee, invs[0].Items[0].InvoiceItemType)
	assert.True(t, invs[1].InvoiceTotalAmount.Equal(amt(1200000)))

	_, err = f.engine.RunRoomFees(ctx, march)
	assert.True(t, errors.Is(err, ErrPeriodAlreadyBilled))
	assert.Len(t, f.invoices(t, invoiceModel.InvoiceSourceRoomFee), 2)
}

func TestRunParkingFeesSkipsVehiclesWithoutRate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, "A101", 1500000)
	s := f.student(t, "Tran Thi B", housingModel.StudentStatusRenting, &room.RoomID)
	gone := f.student(t, "Gone", housingModel.StudentStatusCheckedOut, &room.RoomID)

	f.vehicle(t, s.StudentProfileID, housingModel.VehicleTypeMotorbike, "29A-12345", true)
	f.vehicle(t, s.StudentProfileID, housingModel.VehicleTypeCar, "30F-99999", true)
	f.vehicle(t, s.StudentProfileID, housingModel.VehicleTypeMotorbike, "29A-00000", false)
	f.vehicle(t, gone.StudentProfileID, housingModel.VehicleTypeMotorbike, "29B-11111", true)

	f.rate(t, model.FeeTypeParking, vt(housingModel.VehicleTypeMotorbike), 100000)

	n, err := f.engine.RunParkingFees(ctx, march)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	invs := f.invoices(t, invoiceModel.InvoiceSourceParking)
	require.Len(t, invs, 1)
	assert.Equal(t, s.StudentProfileID, *invs[0].InvoiceStudentProfileID)
	assert.True(t, invs[0].InvoiceTotalAmount.Equal(amt(100000)))
	require.Len(t, invs[0].Items, 1)
	assert.Equal(t, invoiceModel.ItemTypeParking, invs[0].Items[0].InvoiceItemType)
	assert.Contains(t, invs[0].Items[0].InvoiceItemDescription, "29A-12345")
}

func TestRunUtilities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.room(t, "A101", 1500000)
	b := f.room(t, "B202", 1200000)

	f.rate(t, model.FeeTypeElectricity, nil, 3000)
	f.rate(t, model.FeeTypeWater, nil, 10000)

	feb := march.Previous()
	f.reading(t, a.RoomID, model.UtilityElectricity, feb, 120)
	f.reading(t, a.RoomID, model.UtilityElectricity, march, 150)
	f.reading(t, a.RoomID, model.UtilityWater, feb, 10)
	f.reading(t, a.RoomID, model.UtilityWater, march, 10)
	// room B used nothing
	f.reading(t, b.RoomID, model.UtilityWater, feb, 5)
	f.reading(t, b.RoomID, model.UtilityWater, march, 5)

	n, err := f.engine.RunUtilities(ctx, march)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	invs := f.invoices(t, invoiceModel.InvoiceSourceUtility)
	require.Len(t, invs, 1)
	inv := invs[0]
	assert.Equal(t, a.RoomID, *inv.InvoiceRoomID)
	assert.Nil(t, inv.InvoiceStudentProfileID)
	assert.True(t, inv.InvoiceTotalAmount.Equal(amt(90000)), inv.InvoiceTotalAmount.String())
	require.Len(t, inv.Items, 1)
	assert.Equal(t, invoiceModel.ItemTypeElectricity, inv.Items[0].InvoiceItemType)
	assert.Equal(t, "ELECTRICITY 120-150 (30 x 3000)", inv.Items[0].InvoiceItemDescription)

	_, err = f.engine.RunUtilities(ctx, march)
	assert.True(t, errors.Is(err, ErrPeriodAlreadyBilled))
}

func TestRunUtilitiesIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.room(t, "A101", 1500000)
	b := f.room(t, "B202", 1200000)
	f.rate(t, model.FeeTypeElectricity, nil, 3000)

	feb := march.Previous()
	f.reading(t, a.RoomID, model.UtilityElectricity, feb, 120)
	f.reading(t, a.RoomID, model.UtilityElectricity, march, 150)
	f.reading(t, b.RoomID, model.UtilityElectricity, feb, 300)
	f.reading(t, b.RoomID, model.UtilityElectricity, march, 200)

	n, err := f.engine.RunUtilities(ctx, march)
	assert.True(t, errors.Is(err, ErrNegativeConsumption))
	assert.Zero(t, n)
	assert.Empty(t, f.invoices(t, invoiceModel.InvoiceSourceUtility))

	// earlier passes stay committed
	s := f.student(t, "Tran Thi B", housingModel.StudentStatusRenting, &a.RoomID)
	_, err = f.engine.RunRoomFees(ctx, march)
	require.NoError(t, err)
	_, err = f.engine.RunUtilities(ctx, march)
	require.Error(t, err)
	invs := f.invoices(t, invoiceModel.InvoiceSourceRoomFee)
	require.Len(t, invs, 1)
	assert.Equal(t, s.StudentProfileID, *invs[0].InvoiceStudentProfileID)
}

func TestRunRejectsInvalidPeriod(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.RunRoomFees(context.Background(), invoiceModel.Period{Month: 0, Year: 2024})
	assert.True(t, errors.Is(err, invoiceModel.ErrInvalidPeriod))
}

/* =========================================================
   Scheduler
========================================================= */

func TestSchedulerRunsPreviousMonthAndSkipsBilledPasses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, "A101", 1500000)
	s := f.student(t, "Tran Thi B", housingModel.StudentStatusRenting, &room.RoomID)
	f.vehicle(t, s.StudentProfileID, housingModel.VehicleTypeMotorbike, "29A-12345", true)
	f.rate(t, model.FeeTypeParking, vt(housingModel.VehicleTypeMotorbike), 100000)

	_, err := f.engine.RunRoomFees(ctx, march)
	require.NoError(t, err)

	sched, err := NewScheduler(f.engine, "0 2 1 * *", time.UTC, zap.NewNop())
	require.NoError(t, err)
	sched.now = func() time.Time { return time.Date(2024, 4, 1, 2, 0, 0, 0, time.UTC) }

	reports := sched.RunPrevious(ctx)
	require.Len(t, reports, 3)

	assert.Equal(t, invoiceModel.InvoiceSourceRoomFee, reports[0].Source)
	assert.True(t, reports[0].Skipped)
	assert.Equal(t, invoiceModel.InvoiceSourceParking, reports[1].Source)
	assert.False(t, reports[1].Skipped)
	assert.Equal(t, 1, reports[1].Created)
	assert.Equal(t, invoiceModel.InvoiceSourceUtility, reports[2].Source)
	assert.Zero(t, reports[2].Created)
	assert.NoError(t, reports[2].Err)

	assert.Len(t, f.invoices(t, invoiceModel.InvoiceSourceRoomFee), 1)
	parking := f.invoices(t, invoiceModel.InvoiceSourceParking)
	require.Len(t, parking, 1)
	assert.Equal(t, int16(3), parking[0].InvoiceMonth)
}

func TestSchedulerLogsFailedPass(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, "A101", 1500000)
	f.rate(t, model.FeeTypeElectricity, nil, 3000)
	f.reading(t, room.RoomID, model.UtilityElectricity, march.Previous(), 300)
	f.reading(t, room.RoomID, model.UtilityElectricity, march, 200)

	core, logs := observer.New(zapcore.InfoLevel)
	sched, err := NewScheduler(f.engine, "0 2 1 * *", time.UTC, zap.New(core))
	require.NoError(t, err)

	reports := sched.RunPeriod(context.Background(), march)
	require.Len(t, reports, 3)
	assert.True(t, errors.Is(reports[2].Err, ErrNegativeConsumption))

	failed := logs.FilterMessage("billing pass failed").All()
	require.Len(t, failed, 1)
	fields := failed[0].ContextMap()
	assert.Equal(t, string(invoiceModel.InvoiceSourceUtility), fields["source"])
	assert.Contains(t, fields["error"], "negative")
}

func TestSchedulerJanuaryBillsDecember(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, "A101", 1500000)
	f.student(t, "Tran Thi B", housingModel.StudentStatusRenting, &room.RoomID)

	sched, err := NewScheduler(f.engine, "@monthly", time.UTC, nil)
	require.NoError(t, err)
	sched.now = func() time.Time { return time.Date(2025, 1, 1, 0, 5, 0, 0, time.UTC) }

	for _, r := range sched.RunPrevious(context.Background()) {
		assert.NoError(t, r.Err)
	}
	invs := f.invoices(t, invoiceModel.InvoiceSourceRoomFee)
	require.Len(t, invs, 1)
	assert.Equal(t, int16(12), invs[0].InvoiceMonth)
	assert.Equal(t, int16(2024), invs[0].InvoiceYear)
}

func TestNewSchedulerRejectsBadCron(t *testing.T) {
	f := newFixture(t)
	_, err := NewScheduler(f.engine, "every monday", time.UTC, nil)
	assert.True(t, errors.Is(err, ErrInvalidSchedule))
}
