// file: internals/features/finance/payments/route/admin_route.go
package route

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	paymentController "dormitory_backend/internals/features/finance/payments/controller"
	svc "dormitory_backend/internals/features/finance/payments/service"
)

/*
Admin routes: Payments (list + gateway status/refund + event log)
Contoh mount: PaymentAdminRoutes(app.Group("/api/admin", guard), db, checkout)
*/
func PaymentAdminRoutes(r fiber.Router, db *gorm.DB, checkout *svc.Checkout) {
	ctl := paymentController.NewPaymentController(db, checkout)

	payments := r.Group("/payments")
	payments.Get("/", ctl.List)
	payments.Get("/:invoiceId/status", ctl.QueryStatus)
	payments.Post("/:invoiceId/refund", ctl.Refund)

	r.Get("/payment-events", ctl.ListGatewayEvents)
}
