package ratelimit

import (
	"math"
	"strconv"
	"time"

	"github.com/didip/tollbooth/v6"
	"github.com/didip/tollbooth/v6/limiter"
	"github.com/gofiber/fiber/v2"

	"github.com/Aklabu/e-commerce/internal/apperr"
)

// PerClient builds a fiber middleware allowing perMinute requests per client
// IP and route, with a burst of the same size.
func PerClient(perMinute int) fiber.Handler {
	if perMinute <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	lmt := tollbooth.NewLimiter(float64(perMinute)/60, &limiter.ExpirableOptions{
		DefaultExpirationTTL: 10 * time.Minute,
	})
	lmt.SetBurst(perMinute)
	retryAfter := max(1, int(math.Ceil(60/float64(perMinute))))

	return func(c *fiber.Ctx) error {
		if httpErr := tollbooth.LimitByKeys(lmt, []string{c.IP(), c.Route().Path}); httpErr != nil {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
			return apperr.New(apperr.KindRateLimited, "Too many requests. Please slow down.").
				With("retryAfterSeconds", retryAfter)
		}
		return c.Next()
	}
}
