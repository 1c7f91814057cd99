package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"secondbrain-be/pkg/apperror"
)

// ErrorHandlerMiddleware turns errors returned by handlers into the JSON envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		code, message := StatusOf(err)
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}

// StatusOf maps an error to an HTTP status and a client-safe message.
func StatusOf(err error) (int, string) {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, fiberErr.Message
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		code := apperror.HTTPStatus(appErr.Kind)
		if code == fiber.StatusInternalServerError {
			return code, "internal server error"
		}
		return code, appErr.Message
	}
	return fiber.StatusInternalServerError, "internal server error"
}
