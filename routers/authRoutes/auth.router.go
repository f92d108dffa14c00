package authRoutes

import (
	authControllers "learnhub/controllers/auth"
	"learnhub/middleware"
	authValidators "learnhub/validators/auth"

	"github.com/gofiber/fiber/v2"
)

func SetupAuthRoutes(app *fiber.App, h *authControllers.AuthController) {
	authGroup := app.Group("/auth")

	authGroup.Post("/signup", authValidators.Signup(), h.Signup)
	authGroup.Post("/login", authValidators.Login(), h.Login)
	authGroup.Get("/login/history", middleware.JWTMiddleware, authValidators.LoginHistoryList(), h.LoginHistoryList)
}
