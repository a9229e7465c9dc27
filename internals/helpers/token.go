// file: internals/helpers/token.go
package helper

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by the admin guard.
const (
	LocRawToken = "raw_token"
	LocActor    = "actor"
	LocRole     = "role"
)

// GetRawAccessToken mengembalikan access token dari:
// 1) Locals("raw_token") yang diset middleware
// 2) Authorization header "Bearer <token>"
// 3) cookie "access_token" (jika allowCookie)
func GetRawAccessToken(c *fiber.Ctx, allowCookie bool) string {
	if v, ok := c.Locals(LocRawToken).(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	fields := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(fields) == 2 && strings.EqualFold(fields[0], "Bearer") {
		return strings.Trim(fields[1], "\"'")
	}
	if allowCookie {
		return strings.TrimSpace(c.Cookies("access_token"))
	}
	return ""
}

// Actor is the authenticated admin name, or "system" outside a guarded route.
func Actor(c *fiber.Ctx) string {
	if v, ok := c.Locals(LocActor).(string); ok && v != "" {
		return v
	}
	return "system"
}
