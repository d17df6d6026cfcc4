package serverutils

import (
	"github.com/gofiber/fiber/v2"
)

type APIError struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func ErrorResponse(code int, message string) APIError {
	return APIError{Success: false, Code: code, Message: message}
}

// ErrorHandlerMiddleware converts panics and unhandled fiber errors into
// consistent JSON error bodies.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code := fiber.StatusInternalServerError
		var fiberErr *fiber.Error
		if e, ok := err.(*fiber.Error); ok {
			fiberErr = e
			code = e.Code
		}

		message := err.Error()
		if fiberErr != nil {
			message = fiberErr.Message
		}
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}
