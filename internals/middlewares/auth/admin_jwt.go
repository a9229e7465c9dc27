package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"dormitory_backend/internals/constants"
	helper "dormitory_backend/internals/helpers"
)

type AdminJWTOpts struct {
	Secret              string
	Roles               []string // kosong = constants.AdminRoles
	AllowCookieFallback bool     // pakai cookie access_token jika tidak ada Bearer
	Log                 *zap.Logger
}

// AdminJWT memverifikasi token HS256 dan memastikan role termasuk Roles.
// Actor (sub/id/email) dan role disimpan di Locals untuk audit.
func AdminJWT(o AdminJWTOpts) fiber.Handler {
	secret := strings.TrimSpace(o.Secret)
	if secret == "" {
		panic("AdminJWT: Secret wajib diisi")
	}
	roles := o.Roles
	if len(roles) == 0 {
		roles = constants.AdminRoles
	}
	log := o.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("admin_jwt")
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *fiber.Ctx) error {
		// 1) Ambil token
		raw := helper.GetRawAccessToken(c, o.AllowCookieFallback)
		if raw == "" {
			return helper.JsonError(c, fiber.StatusUnauthorized, "Unauthorized")
		}

		// 2) Parse + verifikasi algoritma
		claims := jwt.MapClaims{}
		tok, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return []byte(secret), nil
		})
		if err != nil || !tok.Valid {
			log.Warn("token rejected", zap.String("ip", c.IP()), zap.Error(err))
			return helper.JsonError(c, fiber.StatusUnauthorized, "Invalid token")
		}

		// 3) Role check
		role := pickRole(claims, roles)
		if role == "" {
			return helper.JsonError(c, fiber.StatusForbidden, constants.RoleErrorStaff("admin"))
		}

		actor := firstNonEmpty(strClaim(claims, "sub"), strClaim(claims, "id"), strClaim(claims, "email"))
		if actor == "" {
			actor = role
		}
		c.Locals(helper.LocRawToken, raw)
		c.Locals(helper.LocActor, actor)
		c.Locals(helper.LocRole, role)
		return c.Next()
	}
}

// pickRole returns the first allowed role found in "role" or "roles".
func pickRole(claims jwt.MapClaims, allowed []string) string {
	have := readStringSlice(claims["roles"])
	if r := strClaim(claims, "role"); r != "" {
		have = append([]string{r}, have...)
	}
	for _, r := range have {
		r = strings.ToLower(r)
		for _, a := range allowed {
			if r == a {
				return r
			}
		}
	}
	return ""
}

// util kecil untuk ambil string claim
func strClaim(m jwt.MapClaims, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// util: ubah nilai interface{} → []string (robust untuk []string atau []any)
func readStringSlice(v any) []string {
	out := make([]string, 0)
	switch t := v.(type) {
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, it := range t {
			if s, ok := it.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
