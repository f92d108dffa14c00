package controllers

import (
	"learnhub/middleware"
	"learnhub/validators"

	"github.com/gofiber/fiber/v2"
)

func (h *CourseController) GetAllCourses(c *fiber.Ctx) error {
	reqData := c.Locals("validatedCourseList").(*validators.Pagination)

	courses, total, err := h.Catalog.ListPublished(c.UserContext(), reqData.Page, reqData.Limit)
	if err != nil {
		return h.fail(c, err)
	}

	response := map[string]interface{}{
		"courses": courses,
		"pagination": map[string]interface{}{
			"total": total,
			"page":  reqData.Page,
			"limit": reqData.Limit,
		},
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course list.", response)
}

// GetCourseDetails returns the course outline with quizzes, never revealing correct answers.
func (h *CourseController) GetCourseDetails(c *fiber.Ctx) error {
	user, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	detail, err := h.Catalog.Detail(c.UserContext(), user, localID(c, "course_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course details.", detail)
}
