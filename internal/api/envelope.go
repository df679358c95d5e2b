// Package api defines the response envelope shared by every endpoint
// and the Fiber error handler that renders failures into it.
package api

import (
	"github.com/gofiber/fiber/v2"
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Locals keys shared between middleware and handlers.
const (
	// RequestIDKey holds the request id set by the observe middleware.
	RequestIDKey = "X-Request-ID"
	// SubjectKey holds the authenticated user id set by RequireToken.
	SubjectKey = "auth_subject"
)

// Response is the envelope every endpoint answers with. Data carries
// the payload on success; Errors carries structured error detail on
// failure. Both are omitted when empty.
type Response struct {
	Status    string `json:"status"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
	Errors    any    `json:"errors,omitempty"`
}

// Success writes a success envelope with the given HTTP status.
func Success(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Response{
		Status:    StatusSuccess,
		Code:      status,
		Message:   message,
		RequestID: requestID(c),
		Data:      data,
	})
}

// Fail writes an error envelope with the given HTTP status. Data may
// still carry a payload, as create responses do when some items were
// rejected by the engine.
func Fail(c *fiber.Ctx, status int, message string, data, errs any) error {
	return c.Status(status).JSON(Response{
		Status:    StatusError,
		Code:      status,
		Message:   message,
		RequestID: requestID(c),
		Data:      data,
		Errors:    errs,
	})
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(RequestIDKey).(string)
	return id
}
