package middlewares

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	helper "dormitory_backend/internals/helpers"
)

func limitReached(msg string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return helper.JsonError(c, fiber.StatusTooManyRequests, msg)
	}
}

// Global limiter: untuk semua endpoint biasa
func GlobalRateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		// callback gateway tidak boleh kena limit global
		Next: func(c *fiber.Ctx) bool {
			return isGatewayCallback(c.Path())
		},
		LimitReached: limitReached("Terlalu banyak permintaan. Silakan coba lagi nanti."),
	})
}

// Rate limiter untuk pembuatan checkout (lebih ketat)
func CheckoutRateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + ":" + c.Params("id")
		},
		LimitReached: limitReached("Terlalu banyak percobaan pembayaran. Coba beberapa saat lagi."),
	})
}

func isGatewayCallback(path string) bool {
	switch path {
	case "/api/payments/gateway/return", "/api/payments/gateway/ipn", "/api/payments/snap/notification":
		return true
	}
	return false
}
