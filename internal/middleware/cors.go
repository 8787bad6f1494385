package middleware

import (
	"strings"

	"estate-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CORSConfig holds CORS configuration (suffix + dev password).
type CORSConfig struct {
	AllowedSuffix string
	DevPassword   string
}

// CORS returns a Fiber handler that allows origins ending with AllowedSuffix
// or requests with the correct dev-password header. Credentials allowed.
func CORS(cfg CORSConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		origin := c.Get("Origin")
		// No origin (e.g. same-origin or tools): allow
		if origin == "" {
			return c.Next()
		}
		// Preflight from localhost in dev
		if c.Method() == fiber.MethodOptions && (strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")) {
			setCORSHeaders(c, origin)
			return c.SendStatus(fiber.StatusNoContent)
		}
		if cfg.AllowedSuffix != "" && strings.HasSuffix(strings.ToLower(origin), strings.ToLower(cfg.AllowedSuffix)) {
			setCORSHeaders(c, origin)
			if c.Method() == fiber.MethodOptions {
				return c.SendStatus(fiber.StatusNoContent)
			}
			return c.Next()
		}
		if cfg.DevPassword != "" && c.Get("dev-password") == cfg.DevPassword {
			setCORSHeaders(c, origin)
			return c.Next()
		}
		return response.Error(c, "Not allowed by CORS", fiber.StatusForbidden, nil)
	}
}

func setCORSHeaders(c *fiber.Ctx, origin string) {
	c.Set("Access-Control-Allow-Origin", origin)
	c.Set("Access-Control-Allow-Credentials", "true")
	c.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	c.Set("Access-Control-Allow-Headers", "Content-Type, dev-password, X-Trace-Id")
	c.Set("Access-Control-Expose-Headers", "X-Trace-Id, Content-Disposition")
}
