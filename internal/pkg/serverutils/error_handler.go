package serverutils

import (
	"errors"

	"github.com/philippzach/growth-gpt-sub000/internal/apperror"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware maps the error taxonomy onto HTTP status codes so
// controllers can just return errors.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse("REQUEST_FAILED", fiberErr.Message))
		}

		kind := apperror.KindOf(err)
		status := statusForKind(kind)

		var ae *apperror.AppError
		message := err.Error()
		if errors.As(err, &ae) {
			message = ae.Message
		}

		return ctx.Status(status).JSON(ErrorResponse(string(kind), message))
	}
}

func statusForKind(kind apperror.Kind) int {
	switch kind {
	case apperror.KindNotFound:
		return fiber.StatusNotFound
	case apperror.KindUnauthorized:
		return fiber.StatusForbidden
	case apperror.KindPreconditionFailed, apperror.KindInvalidRequest:
		return fiber.StatusBadRequest
	case apperror.KindUpstreamFailure:
		return fiber.StatusBadGateway
	case apperror.KindPersistenceFailure:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
