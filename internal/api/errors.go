package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Error is a handler failure that already knows its HTTP status and
// the structured detail to expose. Handlers return it and let the app
// error handler render the envelope.
type Error struct {
	Status  int
	Message string
	Errors  any
}

func (e *Error) Error() string {
	return e.Message
}

// BadRequest wraps client-side validation failures.
func BadRequest(message string, errs any) *Error {
	return &Error{Status: http.StatusBadRequest, Message: message, Errors: errs}
}

// Unauthorized signals a missing or rejected credential.
func Unauthorized(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Message: message}
}

// Forbidden signals a valid credential without the required rights.
func Forbidden(message string) *Error {
	return &Error{Status: http.StatusForbidden, Message: message}
}

// Unavailable signals that the ledger engine could not be reached or
// did not answer within the deadline.
func Unavailable(message string) *Error {
	return &Error{Status: http.StatusServiceUnavailable, Message: message}
}

// ErrorHandler renders every error escaping a handler into the
// response envelope. Unexpected errors are logged and answered with a
// bare 500 so internals never leak to clients.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			return Fail(c, apiErr.Status, apiErr.Message, nil, apiErr.Errors)
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return Fail(c, fiberErr.Code, fiberErr.Message, nil, nil)
		}

		logger.Error("unhandled error",
			slog.String("path", c.Path()),
			slog.String("request_id", requestID(c)),
			slog.Any("error", err),
		)
		return Fail(c, http.StatusInternalServerError, "internal server error", nil, nil)
	}
}
