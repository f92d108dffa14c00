package controllers

import (
	"learnhub/apperr"
	"learnhub/logger"
	"learnhub/middleware"
	"learnhub/services"

	"github.com/gofiber/fiber/v2"
)

// CourseController serves the course, quiz and certificate endpoints.
type CourseController struct {
	Catalog    *services.Catalog
	Tracker    *services.EnrollmentTracker
	Completion *services.CompletionWorkflow
	Grader     *services.QuizGrader
	Issuer     *services.CertificateIssuer
	Reviews    *services.Reviews
	Log        *logger.Logger
}

// actor reads the caller set by JWTMiddleware.
func actor(c *fiber.Ctx) (services.Actor, bool) {
	userID, ok := c.Locals("userId").(uint)
	if !ok || userID == 0 {
		return services.Actor{}, false
	}
	role, _ := c.Locals("role").(string)
	return services.Actor{UserID: userID, Role: role}, true
}

func unauthorized(c *fiber.Ctx) error {
	return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
}

// fail logs unexpected errors and writes the response for err.
func (h *CourseController) fail(c *fiber.Ctx, err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindInternal, apperr.KindTransient:
		h.Log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return middleware.ErrorResponse(c, err)
}

func localID(c *fiber.Ctx, name string) uint {
	id, _ := c.Locals(name).(uint)
	return id
}
