package serverutils

import (
	"context"
	"errors"
	"strings"

	"docqa-be/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps a domain error onto an HTTP status and a client message.
func StatusFor(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "Operation timed out: " + err.Error()
	case errors.Is(err, apperr.ErrNotFound):
		return fiber.StatusNotFound, "Session not found"
	case errors.Is(err, apperr.ErrIndexNotFound):
		return fiber.StatusNotFound, "No documents have been indexed for this session"
	case errors.Is(err, apperr.ErrInvalidInput):
		return fiber.StatusBadRequest, strings.TrimPrefix(err.Error(), apperr.ErrInvalidInput.Error()+": ")
	case apperr.IsLoadError(err):
		return fiber.StatusServiceUnavailable, "Index could not be loaded; re-upload the documents to rebuild it"
	case apperr.IsExternalError(err):
		return fiber.StatusBadGateway, err.Error()
	case apperr.IsStorageError(err):
		return fiber.StatusInternalServerError, "Session storage failure"
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	default:
		return fiber.StatusInternalServerError, err.Error()
	}
}

// ErrorHandlerMiddleware turns errors returned by handlers into the standard envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		code, message := StatusFor(err)
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}
