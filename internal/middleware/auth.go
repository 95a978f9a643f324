package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Aklabu/e-commerce/internal/apperr"
	"github.com/Aklabu/e-commerce/internal/utils"
)

const claimsContextKey = "currentClaims"

// TokenParser validates a bearer access token.
type TokenParser interface {
	ParseAccessToken(token string) (*utils.AccessClaims, error)
}

// AuthMiddleware validates the bearer token and stores its claims in the
// request context.
func AuthMiddleware(tokens TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return apperr.New(apperr.KindInvalidToken, "Authentication credentials were not provided.")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return apperr.New(apperr.KindInvalidToken, "Invalid authorization header")
		}

		claims, err := tokens.ParseAccessToken(strings.TrimSpace(parts[1]))
		if err != nil {
			return err
		}
		if _, err := claims.AccountUUID(); err != nil {
			return apperr.New(apperr.KindInvalidToken, "Token is invalid or expired")
		}

		c.Locals(claimsContextKey, claims)
		return c.Next()
	}
}

// StaffOnly lets through only tokens minted for staff accounts. It must run
// after AuthMiddleware.
func StaffOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := GetClaims(c)
		if !ok || !claims.Staff {
			return apperr.New(apperr.KindForbidden, "You do not have permission to perform this action.")
		}
		return c.Next()
	}
}

func GetClaims(c *fiber.Ctx) (*utils.AccessClaims, bool) {
	claims, ok := c.Locals(claimsContextKey).(*utils.AccessClaims)
	return claims, ok && claims != nil
}

// GetCurrentAccountID extracts the authenticated account ID from context.
func GetCurrentAccountID(c *fiber.Ctx) (uuid.UUID, bool) {
	claims, ok := GetClaims(c)
	if !ok {
		return uuid.Nil, false
	}
	id, err := claims.AccountUUID()
	return id, err == nil
}
