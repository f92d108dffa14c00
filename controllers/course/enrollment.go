package controllers

import (
	"learnhub/middleware"

	"github.com/gofiber/fiber/v2"
)

func (h *CourseController) EnrollInCourse(c *fiber.Ctx) error {
	user, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	enrollment, err := h.Tracker.Enroll(c.UserContext(), user, localID(c, "course_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Enrolled in course successfully!", enrollment)
}

func (h *CourseController) GetEnrollments(c *fiber.Ctx) error {
	user, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	enrollments, err := h.Catalog.ListEnrollments(c.UserContext(), user)
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollment list.", enrollments)
}
