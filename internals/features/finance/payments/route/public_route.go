// file: internals/features/finance/payments/route/public_route.go
package route

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	paymentController "dormitory_backend/internals/features/finance/payments/controller"
	svc "dormitory_backend/internals/features/finance/payments/service"
	middlewares "dormitory_backend/internals/middlewares"
)

/*
Public routes: callback gateway + checkout (tanpa JWT)
Contoh mount: PaymentPublicRoutes(app.Group("/api"), ...)
- GET  /api/payments/gateway/return
- GET  /api/payments/gateway/ipn
- POST /api/payments/snap/notification
- POST /api/invoices/:id/checkout
*/
func PaymentPublicRoutes(r fiber.Router, db *gorm.DB, reconciler *svc.Reconciler, checkout *svc.Checkout, log *zap.Logger) {
	cb := paymentController.NewCallbackController(reconciler, log)
	pay := paymentController.NewPaymentController(db, checkout)

	payments := r.Group("/payments")
	payments.Get("/gateway/return", cb.Return)
	payments.Get("/gateway/ipn", cb.IPN)
	payments.Post("/snap/notification", cb.SnapNotification)

	r.Post("/invoices/:id/checkout", middlewares.CheckoutRateLimiter(), pay.StartCheckout)
}
