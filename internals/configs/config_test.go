package configs

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dormitory_backend/internals/features/finance/gateway/securehash"
)

func setRequired(t *testing.T) {
	t.Setenv("PAYMENT_GATEWAY_URL", "https://sandbox.gateway.test/pay")
	t.Setenv("PAYMENT_MERCHANT_CODE", "DORM01")
	t.Setenv("PAYMENT_SECRET", "S3CRET")
	t.Setenv("JWT_SECRET", "jwt-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("PAYMENT_HASH_ALGORITHM", "")
	t.Setenv("PAYMENT_GATEWAY_API_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, securehash.SHA512, cfg.Payment.HashAlgorithm)
	assert.Equal(t, "https://sandbox.gateway.test/pay", cfg.Payment.APIURL)
	assert.Equal(t, 10*time.Second, cfg.Payment.APITimeout)
	assert.Equal(t, 15, cfg.Billing.DueDays)
	assert.Equal(t, 5, cfg.Billing.GraceDays)
	assert.NotNil(t, cfg.Payment.Location)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
}

func TestLoadSplitsCORSOrigins(t *testing.T) {
	setRequired(t)
	t.Setenv("CORS_ORIGINS", "https://admin.dorm.example, https://dorm.example,,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://admin.dorm.example", "https://dorm.example"}, cfg.CORSOrigins)
}

func TestLoadRejectsMissingJWTSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("PAYMENT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestLoadRejectsUnknownAlgorithm(t *testing.T) {
	setRequired(t)
	t.Setenv("PAYMENT_HASH_ALGORITHM", "MD5")

	_, err := Load()
	assert.True(t, errors.Is(err, securehash.ErrUnsupportedAlgorithm))
}

func TestReturnURL(t *testing.T) {
	c := PaymentConfig{ReturnURLBase: "https://dorm.example/"}
	assert.Equal(t, "https://dorm.example/api/payments/gateway/return", c.ReturnURL())
}
