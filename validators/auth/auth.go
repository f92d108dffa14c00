package authValidator

import (
	"learnhub/services"
	"learnhub/validators"

	"github.com/gofiber/fiber/v2"
)

func Signup() fiber.Handler {
	return validators.Body[services.SignupRequest]("validatedSignup")
}

func Login() fiber.Handler {
	return validators.Body[services.LoginRequest]("validatedLogin")
}

func LoginHistoryList() fiber.Handler {
	return validators.List("validatedLoginHistory")
}
