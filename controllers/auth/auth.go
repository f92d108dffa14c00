package authController

import (
	"learnhub/apperr"
	"learnhub/logger"
	"learnhub/middleware"
	"learnhub/services"
	"learnhub/validators"

	"github.com/gofiber/fiber/v2"
)

type AuthController struct {
	Accounts *services.Accounts
	Log      *logger.Logger
}

func (h *AuthController) fail(c *fiber.Ctx, err error) error {
	if apperr.KindOf(err) == apperr.KindInternal {
		h.Log.Error("auth request failed", "path", c.Path(), "error", err)
	}
	return middleware.ErrorResponse(c, err)
}

func (h *AuthController) Signup(c *fiber.Ctx) error {
	reqData := c.Locals("validatedSignup").(*services.SignupRequest)

	user, err := h.Accounts.Register(c.UserContext(), *reqData)
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "User registered successfully.", user)
}

func (h *AuthController) Login(c *fiber.Ctx) error {
	reqData := c.Locals("validatedLogin").(*services.LoginRequest)

	ip := c.IP()
	if forwarded := c.Get("X-Forwarded-For"); forwarded != "" {
		ip = forwarded
	}

	user, err := h.Accounts.Authenticate(c.UserContext(), *reqData, services.LoginClient{
		IPAddress: ip,
		Device:    c.Get("User-Agent"),
	})
	if err != nil {
		return h.fail(c, err)
	}

	token, err := middleware.GenerateJWT(user.ID, user.Name, user.Role, user.Email)
	if err != nil {
		h.Log.Error("failed to generate token", "user_id", user.ID, "error", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to generate token", nil)
	}

	h.Log.Info("user logged in", "user_id", user.ID, "ip", ip)
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Login successful.", fiber.Map{
		"user":  user,
		"token": token,
	})
}

func (h *AuthController) LoginHistoryList(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}
	reqData := c.Locals("validatedLoginHistory").(*validators.Pagination)

	rows, total, err := h.Accounts.LoginHistory(c.UserContext(), services.Actor{UserID: userID}, reqData.Page, reqData.Limit)
	if err != nil {
		return h.fail(c, err)
	}

	response := map[string]interface{}{
		"loginTracking": rows,
		"pagination": map[string]interface{}{
			"total": total,
			"page":  reqData.Page,
			"limit": reqData.Limit,
		},
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Login History List.", response)
}
