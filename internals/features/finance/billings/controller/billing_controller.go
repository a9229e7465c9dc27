// file: internals/features/finance/billings/controller/billing_controller.go
package controller

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"dormitory_backend/internals/features/finance/billings/dto"
	"dormitory_backend/internals/features/finance/billings/model"
	"dormitory_backend/internals/features/finance/billings/service"
	invoiceModel "dormitory_backend/internals/features/finance/invoices/model"
	helper "dormitory_backend/internals/helpers"
)

type BillingController struct {
	Engine    *service.Engine
	Rates     *service.FeeRates
	Readings  *service.MeterReadings
	Validator *validator.Validate
	Log       *zap.Logger
}

func NewBillingController(engine *service.Engine, rates *service.FeeRates, readings *service.MeterReadings, log *zap.Logger) *BillingController {
	if log == nil {
		log = zap.NewNop()
	}
	return &BillingController{
		Engine:    engine,
		Rates:     rates,
		Readings:  readings,
		Validator: helper.NewValidator(),
		Log:       log.Named("billing_http"),
	}
}

func parseID(c *fiber.Ctx) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Params("id")), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "id tidak valid")
	}
	return id, nil
}

func (h *BillingController) bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json: "+err.Error())
	}
	return h.Validator.Struct(out)
}

/* =======================================================================
   Billing runs
======================================================================= */

type passFunc func(context.Context, invoiceModel.Period) (int, error)

func (h *BillingController) runPass(c *fiber.Ctx, source invoiceModel.InvoiceSource, run passFunc) error {
	var req dto.RunBillingRequest
	if err := h.bind(c, &req); err != nil {
		return helper.FromError(c, err)
	}
	n, err := run(c.UserContext(), req.Period())
	if err != nil {
		return helper.FromError(c, err)
	}
	h.Log.Info("billing pass triggered",
		zap.String("source", string(source)),
		zap.String("actor", helper.Actor(c)),
		zap.Int("created", n))
	return helper.JsonOK(c, "tagihan dibuat", dto.RunBillingResponse{
		Source: source, Month: req.Month, Year: req.Year, Created: n,
	})
}

// POST /billing/room-fees
func (h *BillingController) RunRoomFees(c *fiber.Ctx) error {
	return h.runPass(c, invoiceModel.InvoiceSourceRoomFee, h.Engine.RunRoomFees)
}

// POST /billing/parking-fees
func (h *BillingController) RunParkingFees(c *fiber.Ctx) error {
	return h.runPass(c, invoiceModel.InvoiceSourceParking, h.Engine.RunParkingFees)
}

// POST /billing/utilities
func (h *BillingController) RunUtilities(c *fiber.Ctx) error {
	return h.runPass(c, invoiceModel.InvoiceSourceUtility, h.Engine.RunUtilities)
}

/* =======================================================================
   Fee rates
======================================================================= */

// GET /fee-rates?fee_type=&active=
func (h *BillingController) ListFeeRates(c *fiber.Ctx) error {
	var f service.FeeRateFilter
	if v := strings.TrimSpace(c.Query("fee_type")); v != "" {
		ft, err := model.ParseFeeType(v)
		if err != nil {
			return helper.FromError(c, err)
		}
		f.FeeType = &ft
	}
	f.ActiveOnly = c.QueryBool("active", false)

	rows, err := h.Rates.List(c.UserContext(), f)
	if err != nil {
		return helper.FromError(c, err)
	}
	return helper.JsonOK(c, "ok", dto.FromFeeRates(rows))
}

// POST /fee-rates
func (h *BillingController) CreateFeeRate(c *fiber.Ctx) error {
	var req dto.CreateFeeRateRequest
	if err := h.bind(c, &req); err != nil {
		return helper.FromError(c, err)
	}
	r, err := h.Rates.Create(c.UserContext(), req.ToInput())
	if err != nil {
		return helper.FromError(c, err)
	}
	return helper.JsonCreated(c, "tarif dibuat", dto.FromFeeRate(r))
}

// POST /fee-rates/:id/activate
func (h *BillingController) ActivateFeeRate(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return helper.FromError(c, err)
	}
	r, err := h.Rates.Activate(c.UserContext(), id)
	if err != nil {
		return helper.FromError(c, err)
	}
	return helper.JsonUpdated(c, "tarif diaktifkan", dto.FromFeeRate(r))
}

// POST /fee-rates/:id/deactivate
func (h *BillingController) DeactivateFeeRate(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return helper.FromError(c, err)
	}
	r, err := h.Rates.Deactivate(c.UserContext(), id)
	if err != nil {
		return helper.FromError(c, err)
	}
	return helper.JsonUpdated(c, "tarif dinonaktifkan", dto.FromFeeRate(r))
}

// POST /fee-rates/:id/close
func (h *BillingController) CloseFeeRate(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return helper.FromError(c, err)
	}
	var req dto.CloseFeeRateRequest
	if err := h.bind(c, &req); err != nil {
		return helper.FromError(c, err)
	}
	r, err := h.Rates.Close(c.UserContext(), id, req.Date())
	if err != nil {
		return helper.FromError(c, err)
	}
	return helper.JsonUpdated(c, "tarif ditutup", dto.FromFeeRate(r))
}

/* =======================================================================
   Meter readings
======================================================================= */

// PUT /meter-readings
func (h *BillingController) UpsertMeterReading(c *fiber.Ctx) error {
	var req dto.UpsertMeterReadingRequest
	if err := h.bind(c, &req); err != nil {
		return helper.FromError(c, err)
	}
	row, err := h.Readings.Upsert(c.UserContext(), req.ToInput())
	if err != nil {
		return helper.FromError(c, err)
	}
	return helper.JsonUpdated(c, "meteran disimpan", dto.FromMeterReading(row))
}

// GET /meter-readings?month=&year=&room_id=
func (h *BillingController) ListMeterReadings(c *fiber.Ctx) error {
	p, err := invoiceModel.NewPeriod(c.QueryInt("month"), c.QueryInt("year"))
	if err != nil {
		return helper.FromError(c, err)
	}
	var roomID *uint64
	if v := strings.TrimSpace(c.Query("room_id")); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "room_id tidak valid")
		}
		roomID = &id
	}
	rows, err := h.Readings.ListByPeriod(c.UserContext(), p, roomID)
	if err != nil {
		return helper.FromError(c, err)
	}
	return helper.JsonOK(c, "ok", dto.FromMeterReadings(rows))
}

// GET /meter-readings/consumption?room_id=&type=&month=&year=
func (h *BillingController) Consumption(c *fiber.Ctx) error {
	p, err := invoiceModel.NewPeriod(c.QueryInt("month"), c.QueryInt("year"))
	if err != nil {
		return helper.FromError(c, err)
	}
	roomID, err := strconv.ParseUint(strings.TrimSpace(c.Query("room_id")), 10, 64)
	if err != nil || roomID == 0 {
		return helper.JsonError(c, fiber.StatusBadRequest, "room_id tidak valid")
	}
	res, err := h.Readings.Consumption(c.UserContext(), roomID, model.UtilityType(c.Query("type")), p)
	if err != nil {
		return helper.FromError(c, err)
	}
	return helper.JsonOK(c, "ok", res)
}
