package validators

import (
	"reflect"
	"strconv"
	"strings"

	"learnhub/middleware"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/gofiber/fiber/v2"
)

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")

	validate = validator.New()
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Struct validates v and returns field -> message pairs, nil when v is valid. Nested fields are keyed
// by their path, e.g. answers[0].question_id.
func Struct(v interface{}) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"body": err.Error()}
	}

	fields := make(map[string]string, len(vErrs))
	for _, vErr := range vErrs {
		key := vErr.Namespace()
		// drop the root struct name
		if i := strings.Index(key, "."); i >= 0 {
			key = key[i+1:]
		}
		fields[key] = vErr.Translate(translator)
	}
	return fields
}

// Body parses the JSON body into T, validates it and stores the pointer under locals.
func Body[T any](locals string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(T)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		if errors := Struct(reqData); len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}
		c.Locals(locals, reqData)
		return c.Next()
	}
}

// ParamID requires a positive integer route parameter and stores it as uint under the same name.
func ParamID(param, label string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := strings.TrimSpace(c.Params(param))
		if raw == "" {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, label+" is required!", nil)
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid "+label+"!", nil)
		}
		c.Locals(param, uint(id))
		return c.Next()
	}
}

// Pagination is the page/limit query of list endpoints.
type Pagination struct {
	Page  int `query:"page" json:"page" validate:"gte=1"`
	Limit int `query:"limit" json:"limit" validate:"gte=1,lte=100"`
}

// List parses page and limit, defaulting to the first page of ten.
func List(locals string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := &Pagination{Page: 1, Limit: 10}
		if err := c.QueryParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid query parameters!", nil)
		}
		if errors := Struct(reqData); len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}
		c.Locals(locals, reqData)
		return c.Next()
	}
}
