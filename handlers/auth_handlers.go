package handlers

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"vetarchive/middleware"
	"vetarchive/utils"
)

// LoginRequest carries the shared admin password.
type LoginRequest struct {
	Password string `json:"password" form:"password" validate:"required"`
}

// Login checks the shared password and marks the session as logged in.
// A `next` query parameter is echoed back so the client can return to
// the page that required authentication.
// POST /login?next=...
func (h *ApplicationHandler) Login(c *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := c.BodyParser(payload); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Validation failed",
			"errors":  utils.FormatValidationErrors(err),
		})
	}

	if subtle.ConstantTimeCompare([]byte(payload.Password), []byte(h.Config.AdminPassword)) != 1 {
		h.Logger.WithField("client_ip", c.IP()).Warn("Failed login attempt")
		return utils.RespondWithError(c, fiber.StatusUnauthorized, "Wrong password")
	}

	sess, err := h.Sessions.Get(c)
	if err != nil {
		h.Logger.WithError(err).Error("Opening session failed")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Session store unavailable")
	}
	sess.Set(middleware.SessionKeyLoggedIn, true)
	if err := sess.Save(); err != nil {
		h.Logger.WithError(err).Error("Saving session failed")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not save session")
	}

	next := c.Query("next", "/")
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"next": next})
}

// Logout clears the operator session.
// GET /logout
func (h *ApplicationHandler) Logout(c *fiber.Ctx) error {
	sess, err := h.Sessions.Get(c)
	if err == nil {
		if err := sess.Destroy(); err != nil {
			h.Logger.WithError(err).Warn("Destroying session failed")
		}
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"next": "/"})
}
