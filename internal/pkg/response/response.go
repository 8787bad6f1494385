package response

import (
	"github.com/gofiber/fiber/v2"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// SuccessBody is the envelope for every 2xx JSON response.
type SuccessBody struct {
	Status   string      `json:"status"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data"`
	Metadata interface{} `json:"metadata,omitempty"`
}

// ErrorBody is the envelope for every error response.
type ErrorBody struct {
	Status string      `json:"status"`
	Error  ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Details    interface{} `json:"details,omitempty"`
}

// Pagination is the metadata attached to list responses.
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

func Success(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	return success(c, fiber.StatusOK, message, data, metadata)
}

func SuccessCreated(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	return success(c, fiber.StatusCreated, message, data, metadata)
}

// Paginated sends one page of a list with its Pagination metadata.
func Paginated(c *fiber.Ctx, message string, items interface{}, p Pagination) error {
	return success(c, fiber.StatusOK, message, items, p)
}

func success(c *fiber.Ctx, code int, message string, data, metadata interface{}) error {
	if metadata == nil {
		metadata = fiber.Map{}
	}
	return c.Status(code).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// Error sends statusCode with the error envelope. Nil details render as {}.
func Error(c *fiber.Ctx, message string, statusCode int, details interface{}) error {
	if details == nil {
		details = fiber.Map{}
	}
	return c.Status(statusCode).JSON(ErrorBody{
		Status: statusError,
		Error: ErrorDetail{
			Message:    message,
			StatusCode: statusCode,
			Details:    details,
		},
	})
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusUnauthorized, nil)
}
