package userProfileRoutes

import (
	controllers "learnhub/controllers/course"
	"learnhub/middleware"

	"github.com/gofiber/fiber/v2"
)

// SetupUserRoutes lists what belongs to the logged in user
func SetupUserRoutes(app *fiber.App, h *controllers.CourseController) {
	userGroup := app.Group("/user")

	userGroup.Get("/enrollments", middleware.JWTMiddleware, h.GetEnrollments)
	userGroup.Get("/certificates", middleware.JWTMiddleware, h.GetUserCertificates)
}
