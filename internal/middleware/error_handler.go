package middleware

import (
	"estate-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// ErrorHandler is the global error handler. Returns the standard error format.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	if code >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("trace_id", GetTraceID(c)).Str("path", c.Path()).Msg("unhandled error")
	}
	return response.Error(c, message, code, nil)
}
