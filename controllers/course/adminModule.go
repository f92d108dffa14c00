package controllers

import (
	"learnhub/middleware"
	"learnhub/services"

	"github.com/gofiber/fiber/v2"
)

func (h *CourseController) AdminCreateModule(c *fiber.Ctx) error {
	user, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	reqData := c.Locals("validatedModule").(*services.CreateModuleRequest)

	module, err := h.Catalog.CreateModule(c.UserContext(), user, localID(c, "course_id"), *reqData)
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Module created successfully.", module)
}
