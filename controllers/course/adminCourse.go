package controllers

import (
	"learnhub/middleware"
	"learnhub/services"
	courseValidator "learnhub/validators/course"

	"github.com/gofiber/fiber/v2"
)

func (h *CourseController) AdminCreateCourse(c *fiber.Ctx) error {
	user, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	reqData := c.Locals("validatedCourse").(*services.CreateCourseRequest)

	course, err := h.Catalog.CreateCourse(c.UserContext(), user, *reqData)
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Course created successfully.", course)
}

func (h *CourseController) AdminPublishCourse(c *fiber.Ctx) error {
	user, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	reqData := c.Locals("validatedPublish").(*courseValidator.PublishRequest)

	course, err := h.Catalog.SetPublished(c.UserContext(), user, localID(c, "course_id"), *reqData.IsPublished)
	if err != nil {
		return h.fail(c, err)
	}

	message := "Course unpublished successfully."
	if course.IsPublished {
		message = "Course published successfully."
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, message, course)
}
