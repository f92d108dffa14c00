package controllers

import (
	"fmt"

	"learnhub/middleware"

	"github.com/gofiber/fiber/v2"
)

// DownloadCertificate streams the PDF once it has been rendered.
func (h *CourseController) DownloadCertificate(c *fiber.Ctx) error {
	user, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	file, err := h.Issuer.Download(c.UserContext(), user, localID(c, "certificate_id"))
	if err != nil {
		return h.fail(c, err)
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, file.FileName))
	return c.Status(fiber.StatusOK).Send(file.Content)
}

// VerifyCertificate is public. Unknown numbers answer valid=false.
func (h *CourseController) VerifyCertificate(c *fiber.Ctx) error {
	verification, err := h.Issuer.Verify(c.UserContext(), c.Params("certificate_number"))
	if err != nil {
		return h.fail(c, err)
	}

	message := "Certificate is valid."
	if !verification.Valid {
		message = "Certificate not found."
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, message, verification)
}

func (h *CourseController) GetUserCertificates(c *fiber.Ctx) error {
	user, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	certs, err := h.Issuer.ListForUser(c.UserContext(), user)
	if err != nil {
		return h.fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificate list.", certs)
}
