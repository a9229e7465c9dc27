package database

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"dormitory_backend/internals/configs"
	billingModel "dormitory_backend/internals/features/finance/billings/model"
	invoiceModel "dormitory_backend/internals/features/finance/invoices/model"
	paymentModel "dormitory_backend/internals/features/finance/payments/model"
	housingModel "dormitory_backend/internals/features/housing/model"
)

// ConnectDB opens the pool. PreferSimpleProtocol keeps PgBouncer
// (transaction pooling) happy.
func ConnectDB(cfg configs.DBConfig, log *zap.Logger) (*gorm.DB, error) {
	log.Info("connecting to PostgreSQL", zap.String("host", cfg.Host), zap.String("db", cfg.Name))

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:         configs.NewGormLogger(log, gormLogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	log.Info("DB connected")
	return db, nil
}

func TunePool(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("pool tune failed", zap.Error(err))
		return
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
}

func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Models owned (or read) by the billing core, in dependency order.
func Models() []any {
	return []any{
		&housingModel.Room{},
		&housingModel.StudentProfile{},
		&housingModel.VehicleRegistration{},
		&invoiceModel.Invoice{},
		&invoiceModel.InvoiceItem{},
		&invoiceModel.InvoiceStatusOverride{},
		&paymentModel.Payment{},
		&paymentModel.PaymentGatewayEvent{},
		&billingModel.FeeRate{},
		&billingModel.UtilityMeterReading{},
	}
}

// legacyIndexes were replaced by narrower ones and must not outlive them.
var legacyIndexes = []struct {
	model any
	name  string
}{
	{&paymentModel.Payment{}, "uq_payments_transaction_code"},
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	m := db.Migrator()
	for _, ix := range legacyIndexes {
		if m.HasIndex(ix.model, ix.name) {
			if err := m.DropIndex(ix.model, ix.name); err != nil {
				return err
			}
		}
	}
	return nil
}
