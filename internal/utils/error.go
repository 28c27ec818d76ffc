package utils

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"mediashelf/internal/logging"
)

// ErrorCode is the machine-readable error code carried in every error body
type ErrorCode string

const (
	CodeInvalidToken           ErrorCode = "INVALID_TOKEN"
	CodeForbidden              ErrorCode = "FORBIDDEN"
	CodeInsufficientPermission ErrorCode = "INSUFFICIENT_PERMISSION"
	CodeInvalidInput           ErrorCode = "INVALID_INPUT"
	CodeNotFound               ErrorCode = "RESOURCE_NOT_FOUND"
	CodeServerError            ErrorCode = "SERVER_ERROR"
	CodeRateLimited            ErrorCode = "RATE_LIMITED"
)

// ErrorBody is the inner error object
type ErrorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// SendError sends {"error": {"code", "message"}} with the given status
func SendError(c *fiber.Ctx, httpCode int, code ErrorCode, message string) error {
	if message == "" {
		message = http.StatusText(httpCode)
	}
	return c.Status(httpCode).JSON(ErrorResponse{
		Error: ErrorBody{Code: code, Message: message},
	})
}

// SendValidationError sends a 400 INVALID_INPUT response
func SendValidationError(c *fiber.Ctx, message string) error {
	return SendError(c, http.StatusBadRequest, CodeInvalidInput, message)
}

// SendNotFoundError sends a 404 RESOURCE_NOT_FOUND response
func SendNotFoundError(c *fiber.Ctx, resource string) error {
	return SendError(c, http.StatusNotFound, CodeNotFound, resource+" not found")
}

// SendUnauthorizedError sends a 401 INVALID_TOKEN response
func SendUnauthorizedError(c *fiber.Ctx, message string) error {
	return SendError(c, http.StatusUnauthorized, CodeInvalidToken, message)
}

// SendForbiddenError sends a 403 FORBIDDEN response
func SendForbiddenError(c *fiber.Ctx, message string) error {
	return SendError(c, http.StatusForbidden, CodeForbidden, message)
}

// SendInsufficientPermission sends a 403 INSUFFICIENT_PERMISSION response
func SendInsufficientPermission(c *fiber.Ctx, message string) error {
	return SendError(c, http.StatusForbidden, CodeInsufficientPermission, message)
}

// SendInternalServerError sends a 500 SERVER_ERROR response
func SendInternalServerError(c *fiber.Ctx, message string) error {
	return SendError(c, http.StatusInternalServerError, CodeServerError, message)
}

// ErrorWithCode represents an error with an associated HTTP status code
type ErrorWithCode struct {
	Err  error
	Code int
	Kind ErrorCode
}

// NewErrorWithCode creates a new ErrorWithCode
func NewErrorWithCode(err error, code int, kind ErrorCode) *ErrorWithCode {
	return &ErrorWithCode{Err: err, Code: code, Kind: kind}
}

func (e *ErrorWithCode) Error() string {
	return e.Err.Error()
}

func (e *ErrorWithCode) Unwrap() error {
	return e.Err
}

// ErrorHandler is the fiber ErrorHandler. Errors that escape handlers become error bodies.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var coded *ErrorWithCode
	if errors.As(err, &coded) {
		return SendError(c, coded.Code, coded.Kind, coded.Err.Error())
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		switch fe.Code {
		case fiber.StatusNotFound:
			return SendError(c, fe.Code, CodeNotFound, fe.Message)
		case fiber.StatusTooManyRequests:
			return SendError(c, fe.Code, CodeRateLimited, fe.Message)
		case fiber.StatusRequestEntityTooLarge, fiber.StatusBadRequest, fiber.StatusMethodNotAllowed:
			return SendError(c, fe.Code, CodeInvalidInput, fe.Message)
		}
		if fe.Code < fiber.StatusInternalServerError {
			return SendError(c, fe.Code, CodeInvalidInput, fe.Message)
		}
	}

	logging.WithError(err).Error().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Msg("Unhandled request error")
	return SendInternalServerError(c, "Internal server error")
}
