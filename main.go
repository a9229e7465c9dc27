package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"go.uber.org/zap"

	"dormitory_backend/internals/configs"
	database "dormitory_backend/internals/databases"
	billingService "dormitory_backend/internals/features/finance/billings/service"
	gwService "dormitory_backend/internals/features/finance/gateway/service"
	invoiceService "dormitory_backend/internals/features/finance/invoices/service"
	paymentService "dormitory_backend/internals/features/finance/payments/service"
	helper "dormitory_backend/internals/helpers"
	middlewares "dormitory_backend/internals/middlewares"
	"dormitory_backend/internals/observability/metrics"
	routes "dormitory_backend/internals/route"
)

func main() {
	boot, _ := zap.NewProduction()
	configs.LoadEnv(boot)

	cfg, err := configs.Load()
	if err != nil {
		boot.Fatal("invalid configuration", zap.Error(err))
	}
	log, err := configs.NewLogger(cfg.Env)
	if err != nil {
		boot.Fatal("logger init failed", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	// 🔌 DB connect + pool + migrate
	db, err := database.ConnectDB(cfg.DB, log)
	if err != nil {
		log.Fatal("database connect failed", zap.Error(err))
	}
	database.TunePool(db, log)
	if err := database.Migrate(db); err != nil {
		log.Fatal("database migrate failed", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("database handle unavailable", zap.Error(err))
	}
	metrics.Init(sqlDB, log)

	// ✅ services
	gateway := gwService.NewClient(gwService.Config{
		PaymentURL:   cfg.Payment.GatewayURL,
		APIURL:       cfg.Payment.APIURL,
		MerchantCode: cfg.Payment.MerchantCode,
		Secret:       cfg.Payment.Secret,
		Algorithm:    cfg.Payment.HashAlgorithm,
		Locale:       cfg.Payment.Locale,
		Currency:     cfg.Payment.Currency,
		Sandbox:      cfg.Payment.Sandbox,
		Timeout:      cfg.Payment.APITimeout,
		Location:     cfg.Payment.Location,
	}, log)
	snap := gwService.NewSnapCheckout(cfg.Snap.ServerKey, cfg.Snap.UseProd)
	if !snap.Enabled() {
		log.Warn("MIDTRANS_SERVER_KEY kosong, Snap checkout dimatikan")
	}

	ledger := invoiceService.NewLedger(db, log, invoiceService.Schedule{
		DueDays:   cfg.Billing.DueDays,
		GraceDays: cfg.Billing.GraceDays,
	})
	reconciler := paymentService.NewReconciler(db, ledger, gateway, snap, cfg.Payment.ResultURL, log)
	checkout := paymentService.NewCheckout(db, gateway, snap, cfg.Payment.ReturnURL(), log)
	feeRates := billingService.NewFeeRates(db, log)
	readings := billingService.NewMeterReadings(db, log)
	engine := billingService.NewEngine(db, ledger, log)

	// ⏱ scheduler setelah DB siap
	var scheduler *billingService.Scheduler
	if cfg.Billing.Cron != "" {
		scheduler, err = billingService.NewScheduler(engine, cfg.Billing.Cron, cfg.Payment.Location, log)
		if err != nil {
			log.Fatal("billing scheduler init failed", zap.Error(err))
		}
		scheduler.Start()
	}

	app := fiber.New(fiber.Config{
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		DisableStartupMessage: true,
		ProxyHeader:           fiber.HeaderXForwardedFor,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return helper.FromError(c, err)
		},
	})

	// ⚙️ middleware dasar + performa
	app.Use(middlewares.RequestContext(log, 15*time.Second))
	app.Use(middlewares.RecoveryMiddleware(log))
	app.Use(middlewares.CorsMiddleware(cfg.CORSOrigins))
	app.Use(middlewares.GlobalRateLimiter())
	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	app.Use(etag.New())

	routes.SetupRoutes(app, routes.Deps{
		DB:         db,
		Log:        log,
		Env:        cfg.Env,
		JWTSecret:  cfg.JWTSecret,
		Ledger:     ledger,
		Reconciler: reconciler,
		Checkout:   checkout,
		Engine:     engine,
		FeeRates:   feeRates,
		Readings:   readings,
	})

	// 🔒 Keep-Alive & timeout koneksi server
	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = 30 * time.Second
	app.Server().IdleTimeout = 90 * time.Second

	go func() {
		log.Info("listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := app.Listen("0.0.0.0:" + cfg.Port); err != nil {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown: scheduler, HTTP, lalu pool DB
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-ctx.Done():
			log.Warn("billing pass still running at shutdown")
		}
	}
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	_ = sqlDB.Close()
}
