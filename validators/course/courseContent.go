package courseValidator

import (
	"learnhub/services"
	"learnhub/validators"

	"github.com/gofiber/fiber/v2"
)

func LessonID() fiber.Handler {
	return validators.ParamID("lesson_id", "Lesson ID")
}

func QuizID() fiber.Handler {
	return validators.ParamID("quiz_id", "Quiz ID")
}

func AttemptID() fiber.Handler {
	return validators.ParamID("attempt_id", "Attempt ID")
}

func SubmitQuiz() fiber.Handler {
	return validators.Body[services.QuizSubmission]("validatedSubmission")
}

func ReviewCourse() fiber.Handler {
	return validators.Body[services.ReviewRequest]("validatedReview")
}

func CertificateID() fiber.Handler {
	return validators.ParamID("certificate_id", "Certificate ID")
}
