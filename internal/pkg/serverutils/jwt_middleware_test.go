package serverutils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"secondbrain-be/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func authConfig() config.AuthConfig {
	return config.AuthConfig{
		Enabled:     true,
		JWTSecret:   testSecret,
		Audience:    "2brain-api",
		Issuer:      "2brain-viewer",
		AdminAPIKey: "admin-key",
	}
}

func signToken(t *testing.T, claims jwt.RegisteredClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   "me@example.com",
		Audience:  jwt.ClaimStrings{"2brain-api"},
		Issuer:    "2brain-viewer",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

func newAuthApp(cfg config.AuthConfig) *fiber.App {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Use(JwtMiddleware(cfg))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(LocalUserEmail).(string))
	})
	app.Get("/admin", AdminOnly(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func doRequest(t *testing.T, app *fiber.App, path, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestJwtMiddleware(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.ClaimStrings{"other"}

	noSubject := validClaims()
	noSubject.Subject = ""

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"valid token", signToken(t, validClaims(), testSecret), fiber.StatusOK},
		{"missing token", "", fiber.StatusUnauthorized},
		{"expired", signToken(t, expired, testSecret), fiber.StatusUnauthorized},
		{"wrong audience", signToken(t, wrongAudience, testSecret), fiber.StatusUnauthorized},
		{"wrong secret", signToken(t, validClaims(), "other"), fiber.StatusUnauthorized},
		{"missing subject", signToken(t, noSubject, testSecret), fiber.StatusUnauthorized},
		{"admin key", "admin-key", fiber.StatusOK},
	}

	app := newAuthApp(authConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, app, "/me", tt.token)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestJwtMiddleware_AllowList(t *testing.T) {
	cfg := authConfig()
	cfg.AllowedEmails = []string{"Someone@Example.com"}
	app := newAuthApp(cfg)

	resp := doRequest(t, app, "/me", signToken(t, validClaims(), testSecret))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	allowed := validClaims()
	allowed.Subject = "someone@example.com"
	resp = doRequest(t, app, "/me", signToken(t, allowed, testSecret))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestJwtMiddleware_MissingSecret(t *testing.T) {
	cfg := authConfig()
	cfg.JWTSecret = ""
	resp := doRequest(t, newAuthApp(cfg), "/me", signToken(t, validClaims(), testSecret))
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestAdminOnly(t *testing.T) {
	app := newAuthApp(authConfig())

	resp := doRequest(t, app, "/admin", signToken(t, validClaims(), testSecret))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, app, "/admin", "admin-key")
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
