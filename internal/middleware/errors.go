package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/credora/credora-api/internal/apperr"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// ErrorHandler renders every error returned by a handler as a JSON body.
// Classified errors keep their message; anything else becomes a 500 whose
// cause is only exposed outside production.
func ErrorHandler(logger *slog.Logger, production bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var ae *apperr.Error
		var fe *fiber.Error

		status := http.StatusInternalServerError
		body := errorResponse{Error: "Internal server error"}

		switch {
		case errors.As(err, &ae) && ae.Kind != apperr.KindInternal:
			status = ae.Kind.Status()
			body = errorResponse{Error: ae.Message, Details: ae.Details}
		case errors.As(err, &fe):
			status = fe.Code
			body.Error = fe.Message
			if status == http.StatusNotFound {
				body.Error = "Route not found"
			}
		default:
			if !production {
				body.Details = err.Error()
			}
		}

		requestID := GetRequestID(c)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.String("request_id", requestID),
				slog.Any("error", err),
			)
		}
		return c.Status(status).JSON(body)
	}
}
