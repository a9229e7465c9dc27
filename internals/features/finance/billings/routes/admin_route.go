package route

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	billingController "dormitory_backend/internals/features/finance/billings/controller"
	"dormitory_backend/internals/features/finance/billings/service"
)

/*
Admin routes: billing runs, fee rates, meter readings.
*/
func BillingAdminRoutes(r fiber.Router, engine *service.Engine, rates *service.FeeRates, readings *service.MeterReadings, log *zap.Logger) {
	ctl := billingController.NewBillingController(engine, rates, readings, log)

	// =========================
	// Billing runs
	// =========================
	run := r.Group("/billing")
	run.Post("/room-fees", ctl.RunRoomFees)
	run.Post("/parking-fees", ctl.RunParkingFees)
	run.Post("/utilities", ctl.RunUtilities)

	// =========================
	// Fee rates
	// =========================
	fr := r.Group("/fee-rates")
	fr.Get("/", ctl.ListFeeRates)
	fr.Post("/", ctl.CreateFeeRate)
	fr.Post("/:id/activate", ctl.ActivateFeeRate)
	fr.Post("/:id/deactivate", ctl.DeactivateFeeRate)
	fr.Post("/:id/close", ctl.CloseFeeRate)

	// =========================
	// Meter readings
	// =========================
	mr := r.Group("/meter-readings")
	mr.Put("/", ctl.UpsertMeterReading)
	mr.Get("/", ctl.ListMeterReadings)
	mr.Get("/consumption", ctl.Consumption)
}
