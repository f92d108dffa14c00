package controllers

import (
	"learnhub/middleware"

	"github.com/gofiber/fiber/v2"
)

// MarkLessonComplete records the lesson and reports whether it finished the course.
func (h *CourseController) MarkLessonComplete(c *fiber.Ctx) error {
	user, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	result, err := h.Tracker.CompleteLesson(c.UserContext(), user, localID(c, "course_id"), localID(c, "lesson_id"))
	if err != nil {
		return h.fail(c, err)
	}

	message := "Lesson marked as complete."
	switch {
	case result.CourseCompleted && result.Certificate != nil:
		message = "Course completed! Your certificate is being generated."
	case result.AlreadyCompleted:
		message = "Lesson already completed."
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, message, result)
}

func (h *CourseController) GetCourseProgress(c *fiber.Ctx) error {
	user, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	progress, err := h.Tracker.Progress(c.UserContext(), user, localID(c, "course_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course progress.", progress)
}

// CompleteCourse is the explicit completion action. Calling it again returns the existing certificate.
func (h *CourseController) CompleteCourse(c *fiber.Ctx) error {
	user, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	enrollment, cert, err := h.Completion.MarkComplete(c.UserContext(), user, localID(c, "course_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course completed successfully.", fiber.Map{
		"enrollment":  enrollment,
		"certificate": cert,
	})
}
