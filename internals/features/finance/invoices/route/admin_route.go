// file: internals/features/finance/invoices/route/admin_route.go
package route

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	invoiceController "dormitory_backend/internals/features/finance/invoices/controller"
	"dormitory_backend/internals/features/finance/invoices/service"
)

/*
Admin routes: Invoices
Contoh mount: InvoiceAdminRoutes(app.Group("/api/admin", guard), ledger, log)
*/
func InvoiceAdminRoutes(r fiber.Router, ledger *service.Ledger, log *zap.Logger) {
	ctl := invoiceController.NewInvoiceController(ledger, log)

	inv := r.Group("/invoices")
	inv.Get("/", ctl.List)
	inv.Post("/", ctl.Create)
	inv.Get("/export", ctl.ExportPeriod) // sebelum /:id

	inv.Get("/:id", ctl.Get)
	inv.Patch("/:id", ctl.UpdateMetadata)
	inv.Delete("/:id", ctl.Delete)
	inv.Put("/:id/items", ctl.ReplaceItems)
	inv.Post("/:id/cancel", ctl.Cancel)
	inv.Post("/:id/payments", ctl.RecordManualPayment)
	inv.Get("/:id/pdf", ctl.PDF)
}
