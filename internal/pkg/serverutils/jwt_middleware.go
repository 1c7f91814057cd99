package serverutils

import (
	"crypto/subtle"
	"errors"
	"strings"

	"secondbrain-be/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	LocalUserEmail = "user_email"
	LocalIsAdmin   = "is_admin"

	AdminEmail     = "admin@system"
	AnonymousEmail = "anonymous"
)

// JwtMiddleware verifies HS256 bearer tokens. The configured admin API key is
// accepted in place of a token and marks the request as admin.
func JwtMiddleware(cfg config.AuthConfig) fiber.Handler {
	allowed := make(map[string]struct{}, len(cfg.AllowedEmails))
	for _, email := range cfg.AllowedEmails {
		allowed[strings.ToLower(strings.TrimSpace(email))] = struct{}{}
	}

	return func(ctx *fiber.Ctx) error {
		if !cfg.Enabled {
			ctx.Locals(LocalUserEmail, AnonymousEmail)
			ctx.Locals(LocalIsAdmin, true)
			return ctx.Next()
		}

		tokenStr := bearerToken(ctx)
		if tokenStr == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing bearer token.")
		}

		if cfg.AdminAPIKey != "" && subtle.ConstantTimeCompare([]byte(tokenStr), []byte(cfg.AdminAPIKey)) == 1 {
			ctx.Locals(LocalUserEmail, AdminEmail)
			ctx.Locals(LocalIsAdmin, true)
			return ctx.Next()
		}

		if cfg.JWTSecret == "" {
			return fiber.NewError(fiber.StatusInternalServerError, "JWT secret is not configured.")
		}

		claims := jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWTSecret), nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithAudience(cfg.Audience),
			jwt.WithIssuer(cfg.Issuer),
		)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return fiber.NewError(fiber.StatusUnauthorized, "Token has expired.")
			}
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token.")
		}

		email := strings.TrimSpace(claims.Subject)
		if email == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Token is missing the subject claim.")
		}

		if len(allowed) > 0 {
			if _, ok := allowed[strings.ToLower(email)]; !ok {
				return fiber.NewError(fiber.StatusForbidden, "This account is not allowed to access the API.")
			}
		}

		ctx.Locals(LocalUserEmail, email)
		ctx.Locals(LocalIsAdmin, false)
		return ctx.Next()
	}
}

// AdminOnly must run after JwtMiddleware.
func AdminOnly() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if isAdmin, _ := ctx.Locals(LocalIsAdmin).(bool); !isAdmin {
			return fiber.NewError(fiber.StatusForbidden, "Admin API key required.")
		}
		return ctx.Next()
	}
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// a websocket handshake, so upgrades may pass ?token= instead.
func bearerToken(ctx *fiber.Ctx) string {
	authHeader := ctx.Get(fiber.HeaderAuthorization)
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	if strings.EqualFold(ctx.Get(fiber.HeaderUpgrade), "websocket") {
		return ctx.Query("token")
	}
	return ""
}
