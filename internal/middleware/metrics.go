package middleware

import (
	"strconv"
	"time"

	"estate-backend/internal/metrics"

	"github.com/gofiber/fiber/v2"
)

// Metrics observes every request, labelled by route template rather than raw path.
func Metrics(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
			route = r.Path
		}
		m.ObserveHTTP(c.Method(), route, strconv.Itoa(status), time.Since(start))
		return err
	}
}
