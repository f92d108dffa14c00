package routers

import (
	"errors"

	authControllers "learnhub/controllers/auth"
	controllers "learnhub/controllers/course"
	"learnhub/middleware"
	authRoutes "learnhub/routers/authRoutes"
	courseRoutes "learnhub/routers/courseRoutes"
	userProfileRoutes "learnhub/routers/userRoutes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type Options struct {
	// RequestLog enables the access log middleware.
	RequestLog bool
	// PublicDir is served as static files when set.
	PublicDir string
}

// New builds the HTTP app with every route group registered.
func New(auth *authControllers.AuthController, course *controllers.CourseController, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "learnhub",
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE",  // Allowed HTTP methods
		AllowHeaders: "Content-Type,Authorization", // Allowed headers
	}))

	if opts.RequestLog {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
		}))
	}

	if opts.PublicDir != "" {
		app.Static("/", opts.PublicDir)
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return middleware.JsonResponse(c, fiber.StatusOK, true, "OK", nil)
	})

	authRoutes.SetupAuthRoutes(app, auth)
	courseRoutes.SetupCourseRoutes(app, course)
	courseRoutes.SetupAdminCourseRoutes(app, course)
	userProfileRoutes.SetupUserRoutes(app, course)

	return app
}

// errorHandler keeps fiber's own errors (unknown route, bad method) in the JSON envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Failed to process your request!"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	return middleware.JsonResponse(c, code, false, message, nil)
}
