package possessions

import (
	"context"
	"errors"

	possvc "estate-backend/internal/application/possessions"
	"estate-backend/internal/middleware"
	"estate-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Outward error codes; clients switch on these, not on messages.
const (
	CodeNotFound                    = "NOT_FOUND"
	CodeValidationFailed            = "VALIDATION_FAILED"
	CodeIllegalTransition           = "ILLEGAL_TRANSITION"
	CodeDuplicateActivePossession   = "DUPLICATE_ACTIVE_POSSESSION"
	CodeConflictingConcurrentUpdate = "CONFLICTING_CONCURRENT_UPDATE"
	CodeCodeAllocationExhausted     = "CODE_ALLOCATION_EXHAUSTED"
	CodeDocumentStoreUnavailable    = "DOCUMENT_STORE_UNAVAILABLE"
)

// writeError maps lifecycle errors onto HTTP statuses. Anything unrecognised is logged and hidden behind a 500.
func writeError(c *fiber.Ctx, err error) error {
	var (
		invalid  *possvc.ValidationError
		notFound *possvc.NotFoundError
		illegal  *possvc.IllegalTransitionError
		dup      *possvc.DuplicateActivePossessionError
	)
	switch {
	case errors.As(err, &invalid):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, fiber.Map{
			"code":   CodeValidationFailed,
			"fields": invalid.Fields,
		})
	case errors.As(err, &notFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, fiber.Map{"code": CodeNotFound})
	case errors.As(err, &illegal):
		return response.Error(c, err.Error(), fiber.StatusConflict, fiber.Map{
			"code": CodeIllegalTransition,
			"from": illegal.From,
			"to":   illegal.To,
		})
	case errors.As(err, &dup):
		return response.Error(c, err.Error(), fiber.StatusConflict, fiber.Map{
			"code":         CodeDuplicateActivePossession,
			"plotId":       dup.PlotID,
			"existingCode": dup.ExistingCode,
		})
	case errors.Is(err, possvc.ErrConflictingConcurrentUpdate):
		return response.Error(c, "Possession was modified by another request, reload and retry", fiber.StatusConflict,
			fiber.Map{"code": CodeConflictingConcurrentUpdate})
	case errors.Is(err, possvc.ErrCodeAllocationExhausted):
		return response.Error(c, "Could not allocate a possession code, retry shortly", fiber.StatusServiceUnavailable,
			fiber.Map{"code": CodeCodeAllocationExhausted})
	case errors.Is(err, possvc.ErrDocumentStoreUnavailable):
		return response.Error(c, "Document storage is not configured", fiber.StatusServiceUnavailable,
			fiber.Map{"code": CodeDocumentStoreUnavailable})
	case errors.Is(err, context.Canceled):
		return response.Error(c, "Request cancelled", fiber.StatusRequestTimeout, nil)
	}
	log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Str("path", c.Path()).Msg("possession request failed")
	return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
}
