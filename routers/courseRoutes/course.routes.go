package courseRoutes

import (
	controllers "learnhub/controllers/course"
	"learnhub/middleware"
	validators "learnhub/validators/course"

	"github.com/gofiber/fiber/v2"
)

// SetupCourseRoutes sets up all student facing course routes
func SetupCourseRoutes(app *fiber.App, h *controllers.CourseController) {
	userGroup := app.Group("/course")

	// Course listing and details
	userGroup.Get("/list", validators.CourseList(), h.GetAllCourses)

	// Quizzes
	userGroup.Post("/quiz/:quiz_id/submit", middleware.JWTMiddleware, validators.QuizID(), validators.SubmitQuiz(), h.SubmitQuiz)
	userGroup.Get("/quiz/attempts/:attempt_id", middleware.JWTMiddleware, validators.AttemptID(), h.GetQuizAttempt)

	userGroup.Get("/:course_id", middleware.JWTMiddleware, validators.CourseID(), h.GetCourseDetails)
	userGroup.Get("/:course_id/reviews", validators.CourseID(), h.GetCourseReviews)

	// Enrollment and progress
	userGroup.Post("/:course_id/enroll", middleware.JWTMiddleware, validators.CourseID(), h.EnrollInCourse)
	userGroup.Get("/:course_id/progress", middleware.JWTMiddleware, validators.CourseID(), h.GetCourseProgress)
	userGroup.Post("/:course_id/lesson/:lesson_id/complete", middleware.JWTMiddleware, validators.CourseID(), validators.LessonID(), h.MarkLessonComplete)
	userGroup.Post("/:course_id/complete", middleware.JWTMiddleware, validators.CourseID(), h.CompleteCourse)
	userGroup.Post("/:course_id/review", middleware.JWTMiddleware, validators.CourseID(), validators.ReviewCourse(), h.AddReview)

	// Certificates
	certGroup := app.Group("/certificates")
	certGroup.Get("/verify/:certificate_number", h.VerifyCertificate)
	certGroup.Get("/:certificate_id/download", middleware.JWTMiddleware, validators.CertificateID(), h.DownloadCertificate)
}
