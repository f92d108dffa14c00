package courseValidator

import (
	"learnhub/middleware"
	"learnhub/services"
	"learnhub/validators"

	"github.com/gofiber/fiber/v2"
)

// PublishRequest toggles course visibility. Omitting the flag publishes.
type PublishRequest struct {
	IsPublished *bool `json:"is_published"`
}

func CourseID() fiber.Handler {
	return validators.ParamID("course_id", "Course ID")
}

func CreateCourse() fiber.Handler {
	return validators.Body[services.CreateCourseRequest]("validatedCourse")
}

func CourseList() fiber.Handler {
	return validators.List("validatedCourseList")
}

func PublishCourse() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(PublishRequest)
		if len(c.Body()) > 0 {
			if err := c.BodyParser(reqData); err != nil {
				return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
			}
		}
		if reqData.IsPublished == nil {
			publish := true
			reqData.IsPublished = &publish
		}
		c.Locals("validatedPublish", reqData)
		return c.Next()
	}
}
