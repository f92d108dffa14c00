package courseValidator

import (
	"learnhub/services"
	"learnhub/validators"

	"github.com/gofiber/fiber/v2"
)

func CreateModule() fiber.Handler {
	return validators.Body[services.CreateModuleRequest]("validatedModule")
}

func CreateLesson() fiber.Handler {
	return validators.Body[services.CreateLessonRequest]("validatedLesson")
}

func CreateQuiz() fiber.Handler {
	return validators.Body[services.CreateQuizRequest]("validatedQuiz")
}
