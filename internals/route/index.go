// file: internals/route/index.go
package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingService "dormitory_backend/internals/features/finance/billings/service"
	billingRoute "dormitory_backend/internals/features/finance/billings/routes"
	invoiceRoute "dormitory_backend/internals/features/finance/invoices/route"
	invoiceService "dormitory_backend/internals/features/finance/invoices/service"
	paymentRoute "dormitory_backend/internals/features/finance/payments/route"
	paymentService "dormitory_backend/internals/features/finance/payments/service"
	authMiddleware "dormitory_backend/internals/middlewares/auth"
)

var startTime time.Time

// Deps are the wired services the HTTP layer mounts.
type Deps struct {
	DB        *gorm.DB
	Log       *zap.Logger
	Env       string
	JWTSecret string

	Ledger     *invoiceService.Ledger
	Reconciler *paymentService.Reconciler
	Checkout   *paymentService.Checkout
	Engine     *billingService.Engine
	FeeRates   *billingService.FeeRates
	Readings   *billingService.MeterReadings
}

func SetupRoutes(app *fiber.App, d Deps) {
	startTime = time.Now()
	log := d.Log.Named("routes")

	BaseRoutes(app, d.DB, d.Env)

	// ===================== GROUPS =====================

	// PUBLIC → callback gateway + checkout
	log.Info("setting up public group")
	public := app.Group("/api")

	// ADMIN → JWT + role admin/manager
	log.Info("setting up admin group")
	admin := app.Group("/api/admin",
		authMiddleware.AdminJWT(authMiddleware.AdminJWTOpts{
			Secret:              d.JWTSecret,
			AllowCookieFallback: true,
			Log:                 d.Log,
		}),
	)

	// ===================== MOUNT ROUTES =====================

	log.Info("mounting finance routes")
	paymentRoute.PaymentPublicRoutes(public, d.DB, d.Reconciler, d.Checkout, d.Log)

	invoiceRoute.InvoiceAdminRoutes(admin, d.Ledger, d.Log)
	paymentRoute.PaymentAdminRoutes(admin, d.DB, d.Checkout)
	billingRoute.BillingAdminRoutes(admin, d.Engine, d.FeeRates, d.Readings, d.Log)
}
