package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"dormitory_backend/internals/features/finance/gateway/securehash"
	"dormitory_backend/internals/helpers/apperr"
)

var ErrInvalidConfig = apperr.Validation("invalid_config", "invalid configuration")

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	SSLMode  string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&application_name=dormitory&options=-c statement_timeout=5000",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

type PaymentConfig struct {
	GatewayURL    string
	APIURL        string
	MerchantCode  string
	Secret        string
	HashAlgorithm securehash.Algorithm
	ReturnURLBase string
	ResultURL     string
	Sandbox       bool
	Locale        string
	Currency      string
	APITimeout    time.Duration
	Location      *time.Location
}

// ReturnURL is where the gateway sends the browser back.
func (c PaymentConfig) ReturnURL() string {
	return strings.TrimRight(c.ReturnURLBase, "/") + "/api/payments/gateway/return"
}

type SnapConfig struct {
	ServerKey string
	UseProd   bool
}

type BillingConfig struct {
	Cron      string
	DueDays   int
	GraceDays int
}

// Config is loaded once at start and never mutated afterwards.
type Config struct {
	Env         string
	Port        string
	DB          DBConfig
	Payment     PaymentConfig
	Snap        SnapConfig
	Billing     BillingConfig
	JWTSecret   string
	CORSOrigins []string
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// =======================
// ENV LOADER
// =======================

// LoadEnv reads .env outside production; system env always wins.
func LoadEnv(log *zap.Logger) {
	if os.Getenv("APP_ENV") == "production" {
		log.Info("running in production, using system env")
		return
	}
	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, using system env")
		return
	}
	log.Info(".env loaded")
}

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if (!exists || value == "") && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

// Load builds the immutable Config from the environment.
func Load() (*Config, error) {
	alg, err := securehash.ParseAlgorithm(GetEnv("PAYMENT_HASH_ALGORITHM", "SHA512"))
	if err != nil {
		return nil, err
	}
	sandbox, err := parseBool("PAYMENT_SANDBOX", "true")
	if err != nil {
		return nil, err
	}
	useProd, err := parseBool("MIDTRANS_USE_PROD", "false")
	if err != nil {
		return nil, err
	}
	timeout, err := time.ParseDuration(GetEnv("PAYMENT_API_TIMEOUT", "10s"))
	if err != nil || timeout <= 0 {
		return nil, ErrInvalidConfig.WithField("PAYMENT_API_TIMEOUT").WithDetail("%q", GetEnv("PAYMENT_API_TIMEOUT"))
	}
	dueDays, err := parseInt("BILLING_DUE_DAYS", "15")
	if err != nil {
		return nil, err
	}
	graceDays, err := parseInt("BILLING_GRACE_DAYS", "5")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:  GetEnv("APP_ENV", "development"),
		Port: GetEnv("PORT", "3000"),
		DB: DBConfig{
			User:     GetEnv("DB_USER"),
			Password: GetEnv("DB_PASSWORD"),
			Host:     GetEnv("DB_HOST", "localhost"),
			Port:     GetEnv("DB_PORT", "5432"),
			Name:     GetEnv("DB_NAME"),
			SSLMode:  GetEnv("DB_SSLMODE", "require"),
		},
		Payment: PaymentConfig{
			GatewayURL:    GetEnv("PAYMENT_GATEWAY_URL"),
			APIURL:        GetEnv("PAYMENT_GATEWAY_API_URL"),
			MerchantCode:  GetEnv("PAYMENT_MERCHANT_CODE"),
			Secret:        GetEnv("PAYMENT_SECRET"),
			HashAlgorithm: alg,
			ReturnURLBase: GetEnv("PAYMENT_RETURN_URL_BASE", "http://localhost:3000"),
			ResultURL:     GetEnv("PAYMENT_RESULT_URL", "http://localhost:5173/payment/result"),
			Sandbox:       sandbox,
			Locale:        GetEnv("PAYMENT_LOCALE", "vn"),
			Currency:      GetEnv("PAYMENT_CURRENCY", "VND"),
			APITimeout:    timeout,
			Location:      gatewayLocation(),
		},
		Snap: SnapConfig{
			ServerKey: GetEnv("MIDTRANS_SERVER_KEY"),
			UseProd:   useProd,
		},
		Billing: BillingConfig{
			Cron:      GetEnv("BILLING_CRON"),
			DueDays:   dueDays,
			GraceDays: graceDays,
		},
		JWTSecret:   GetEnv("JWT_SECRET"),
		CORSOrigins: splitList(GetEnv("CORS_ORIGINS", "http://localhost:5173")),
	}

	for key, v := range map[string]string{
		"PAYMENT_GATEWAY_URL":   cfg.Payment.GatewayURL,
		"PAYMENT_MERCHANT_CODE": cfg.Payment.MerchantCode,
		"PAYMENT_SECRET":        cfg.Payment.Secret,
		"JWT_SECRET":            cfg.JWTSecret,
	} {
		if strings.TrimSpace(v) == "" {
			return nil, ErrInvalidConfig.WithField(key).WithDetail("required")
		}
	}
	if cfg.Payment.APIURL == "" {
		cfg.Payment.APIURL = cfg.Payment.GatewayURL
	}
	return cfg, nil
}

// gatewayLocation is the zone gateway timestamps are written in.
func gatewayLocation() *time.Location {
	if loc, err := time.LoadLocation(GetEnv("PAYMENT_TIMEZONE", "Asia/Ho_Chi_Minh")); err == nil {
		return loc
	}
	return time.FixedZone("ICT", 7*60*60)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(key, def string) (bool, error) {
	v, err := strconv.ParseBool(GetEnv(key, def))
	if err != nil {
		return false, ErrInvalidConfig.WithField(key).Wrap(err)
	}
	return v, nil
}

func parseInt(key, def string) (int, error) {
	v, err := strconv.Atoi(GetEnv(key, def))
	if err != nil || v < 0 {
		return 0, ErrInvalidConfig.WithField(key).WithDetail("%q", GetEnv(key, def))
	}
	return v, nil
}
