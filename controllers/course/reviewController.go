package controllers

import (
	"learnhub/middleware"
	"learnhub/services"

	"github.com/gofiber/fiber/v2"
)

func (h *CourseController) AddReview(c *fiber.Ctx) error {
	user, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	reqData := c.Locals("validatedReview").(*services.ReviewRequest)

	review, err := h.Reviews.Add(c.UserContext(), user, localID(c, "course_id"), *reqData)
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Review added successfully.", review)
}

func (h *CourseController) GetCourseReviews(c *fiber.Ctx) error {
	reviews, err := h.Reviews.ForCourse(c.UserContext(), localID(c, "course_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Review list.", reviews)
}
