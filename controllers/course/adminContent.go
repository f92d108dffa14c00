package controllers

import (
	"learnhub/middleware"
	"learnhub/services"

	"github.com/gofiber/fiber/v2"
)

func (h *CourseController) AdminCreateLesson(c *fiber.Ctx) error {
	user, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	reqData := c.Locals("validatedLesson").(*services.CreateLessonRequest)

	lesson, err := h.Catalog.CreateLesson(c.UserContext(), user, localID(c, "course_id"), *reqData)
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Lesson created successfully.", lesson)
}

func (h *CourseController) AdminCreateQuiz(c *fiber.Ctx) error {
	user, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	reqData := c.Locals("validatedQuiz").(*services.CreateQuizRequest)

	quiz, err := h.Catalog.CreateQuiz(c.UserContext(), user, localID(c, "course_id"), *reqData)
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Quiz created successfully.", quiz)
}
