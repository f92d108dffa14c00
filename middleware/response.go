package middleware

import (
	"learnhub/apperr"

	"github.com/gofiber/fiber/v2"
)

func JsonResponse(c *fiber.Ctx, statusCode int, status bool, message string, data interface{}) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

func ValidationErrorResponse(c *fiber.Ctx, errors map[string]string) error {
	return JsonResponse(c, fiber.StatusUnprocessableEntity, false, "Validation failed!", errors)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindUnauthorized:
		return fiber.StatusUnauthorized
	case apperr.KindForbidden:
		return fiber.StatusForbidden
	case apperr.KindValidation:
		return fiber.StatusUnprocessableEntity
	case apperr.KindNotFound, apperr.KindNotReady:
		return fiber.StatusNotFound
	case apperr.KindConflict:
		return fiber.StatusConflict
	case apperr.KindTransient:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorResponse writes err in the standard envelope. Errors outside the apperr taxonomy never leak
// their text to the client.
func ErrorResponse(c *fiber.Ctx, err error) error {
	appErr, ok := apperr.As(err)
	if !ok {
		return JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process your request!", nil)
	}
	if appErr.Kind == apperr.KindValidation {
		return ValidationErrorResponse(c, appErr.Fields)
	}
	if appErr.Kind == apperr.KindInternal {
		return JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process your request!", nil)
	}
	return JsonResponse(c, StatusFor(appErr.Kind), false, appErr.Message, nil)
}
