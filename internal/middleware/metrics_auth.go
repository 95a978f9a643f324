package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
)

// MetricsAuth guards the scrape endpoint with HTTP basic auth. It lets
// everything through when no username is configured.
func MetricsAuth(username, password string) fiber.Handler {
	if username == "" {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return basicauth.New(basicauth.Config{
		Realm: "metrics",
		Authorizer: func(user, pass string) bool {
			userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
			passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
			return userOK && passOK
		},
		Unauthorized: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="metrics"`)
			return fiber.NewError(fiber.StatusUnauthorized, "Authentication credentials were not provided.")
		},
	})
}
