package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	helper "dormitory_backend/internals/helpers"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func newApp(opts AdminJWTOpts) *fiber.App {
	app := fiber.New()
	app.Get("/admin/whoami", AdminJWT(opts), func(c *fiber.Ctx) error {
		return c.SendString(helper.Actor(c) + "|" + c.Locals(helper.LocRole).(string))
	})
	return app
}

func call(t *testing.T, app *fiber.App, token string, cookie bool) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin/whoami", nil)
	if token != "" {
		if cookie {
			req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
		} else {
			req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
		}
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestAdminJWTAcceptsStaffRoles(t *testing.T) {
	app := newApp(AdminJWTOpts{Secret: secret})
	exp := time.Now().Add(time.Hour).Unix()

	code, body := call(t, app, sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"sub": "warden-1", "role": "admin", "exp": exp,
	}), false)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "warden-1|admin", body)

	code, body = call(t, app, sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"email": "m@dorm.example", "roles": []string{"student", "Manager"}, "exp": exp,
	}), false)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "m@dorm.example|manager", body)
}

func TestAdminJWTRejects(t *testing.T) {
	app := newApp(AdminJWTOpts{Secret: secret})
	exp := time.Now().Add(time.Hour).Unix()

	cases := map[string]struct {
		token string
		want  int
	}{
		"missing token": {"", http.StatusUnauthorized},
		"wrong secret": {sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{
			"sub": "x", "role": "admin", "exp": exp,
		}), http.StatusUnauthorized},
		"hs512 not allowed": {sign(t, jwt.SigningMethodHS512, []byte(secret), jwt.MapClaims{
			"sub": "x", "role": "admin", "exp": exp,
		}), http.StatusUnauthorized},
		"expired": {sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
			"sub": "x", "role": "admin", "exp": time.Now().Add(-time.Minute).Unix(),
		}), http.StatusUnauthorized},
		"student role": {sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
			"sub": "x", "role": "student", "exp": exp,
		}), http.StatusForbidden},
		"garbage": {"not-a-jwt", http.StatusUnauthorized},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			code, _ := call(t, app, tc.token, false)
			assert.Equal(t, tc.want, code)
		})
	}
}

func TestAdminJWTCookieFallback(t *testing.T) {
	token := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "w", "role": "admin"})

	code, _ := call(t, newApp(AdminJWTOpts{Secret: secret}), token, true)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := call(t, newApp(AdminJWTOpts{Secret: secret, AllowCookieFallback: true}), token, true)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "w|admin", body)
}
