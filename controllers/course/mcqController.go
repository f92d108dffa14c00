package controllers

import (
	"fmt"

	"learnhub/middleware"
	"learnhub/services"

	"github.com/gofiber/fiber/v2"
)

func (h *CourseController) SubmitQuiz(c *fiber.Ctx) error {
	user, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	reqData := c.Locals("validatedSubmission").(*services.QuizSubmission)

	attempt, result, err := h.Grader.Submit(c.UserContext(), user, localID(c, "quiz_id"), *reqData)
	if err != nil {
		return h.fail(c, err)
	}

	c.Location(fmt.Sprintf("/course/quiz/attempts/%d", attempt.ID))
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Quiz submitted successfully.", fiber.Map{
		"attempt_id":    attempt.ID,
		"score":         result.Score,
		"earned_points": result.EarnedPoints,
		"total_points":  result.TotalPoints,
		"passed":        result.Passed,
		"details":       result.Details,
	})
}

func (h *CourseController) GetQuizAttempt(c *fiber.Ctx) error {
	user, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	attempt, err := h.Grader.Attempt(c.UserContext(), user, localID(c, "attempt_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Quiz attempt.", attempt)
}
