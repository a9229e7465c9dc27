package routes

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dormitory_backend/internals/databases/dbtest"
	billingService "dormitory_backend/internals/features/finance/billings/service"
	gwService "dormitory_backend/internals/features/finance/gateway/service"
	invoiceService "dormitory_backend/internals/features/finance/invoices/service"
	paymentService "dormitory_backend/internals/features/finance/payments/service"
)

const jwtSecret = "route-secret"

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	db := dbtest.SQLite(t)
	log := zap.NewNop()

	gateway := gwService.NewClient(gwService.Config{
		PaymentURL:   "https://sandbox.gateway.test/pay",
		APIURL:       "https://sandbox.gateway.test/api",
		MerchantCode: "DORM01",
		Secret:       "gateway-secret",
	}, log)
	snap := gwService.NewSnapCheckout("", false)
	ledger := invoiceService.NewLedger(db, log, invoiceService.Schedule{DueDays: 15, GraceDays: 5})

	app := fiber.New(fiber.Config{JSONEncoder: sonic.Marshal, JSONDecoder: sonic.Unmarshal})
	SetupRoutes(app, Deps{
		DB:         db,
		Log:        log,
		Env:        "test",
		JWTSecret:  jwtSecret,
		Ledger:     ledger,
		Reconciler: paymentService.NewReconciler(db, ledger, gateway, snap, "https://dorm.test/result", log),
		Checkout:   paymentService.NewCheckout(db, gateway, snap, "https://dorm.test/api/payments/gateway/return", log),
		Engine:     billingService.NewEngine(db, ledger, log),
		FeeRates:   billingService.NewFeeRates(db, log),
		Readings:   billingService.NewMeterReadings(db, log),
	})
	return app
}

func get(t *testing.T, app *fiber.App, path, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestHealthAndMetrics(t *testing.T) {
	app := newApp(t)

	code, body := get(t, app, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"database":"Connected"`)

	code, _ = get(t, app, "/metrics", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestAdminGroupRequiresStaffToken(t *testing.T) {
	app := newApp(t)

	code, _ := get(t, app, "/api/admin/fee-rates", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	student, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "s-1", "role": "student", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	code, _ = get(t, app, "/api/admin/fee-rates", student)
	assert.Equal(t, http.StatusForbidden, code)

	admin, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "warden", "role": "admin", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	code, body := get(t, app, "/api/admin/fee-rates", admin)
	assert.Equal(t, http.StatusOK, code, body)
}

func TestGatewayCallbackIsPublic(t *testing.T) {
	app := newApp(t)

	// unsigned IPN is answered by the reconciler, never by the admin guard
	code, body := get(t, app, "/api/payments/gateway/ipn?vnp_TxnRef=1", "")
	assert.Equal(t, http.StatusOK, code)
	assert.NotContains(t, body, "Unauthorized")
}
