package courseRoutes

import (
	controllers "learnhub/controllers/course"
	"learnhub/middleware"
	"learnhub/models"
	validators "learnhub/validators/course"

	"github.com/gofiber/fiber/v2"
)

// SetupAdminCourseRoutes sets up the course authoring routes for instructors and admins
func SetupAdminCourseRoutes(app *fiber.App, h *controllers.CourseController) {
	adminGroup := app.Group("/admin/course", middleware.JWTMiddleware, middleware.RequireRole(models.RoleInstructor, models.RoleAdmin))

	adminGroup.Post("/", validators.CreateCourse(), h.AdminCreateCourse)
	adminGroup.Patch("/:course_id/publish", validators.CourseID(), validators.PublishCourse(), h.AdminPublishCourse)
	adminGroup.Post("/:course_id/module", validators.CourseID(), validators.CreateModule(), h.AdminCreateModule)
	adminGroup.Post("/:course_id/lesson", validators.CourseID(), validators.CreateLesson(), h.AdminCreateLesson)
	adminGroup.Post("/:course_id/quiz", validators.CourseID(), validators.CreateQuiz(), h.AdminCreateQuiz)
}
