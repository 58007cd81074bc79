package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handler exposes the Google sign-in endpoints.
type Handler struct {
	svc *Service
}

// NewHandler constructs an auth handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Login redirects the browser to the Google consent page.
func (h *Handler) Login(c *fiber.Ctx) error {
	state := uuid.NewString()
	return c.Redirect(h.svc.LoginURL(state), http.StatusTemporaryRedirect)
}

// Callback completes the OAuth exchange and returns a session token.
func (h *Handler) Callback(c *fiber.Ctx) error {
	code := c.Query("code")
	if code == "" {
		return fiber.NewError(http.StatusBadRequest, "missing authorization code")
	}

	user, token, err := h.svc.HandleCallback(c.UserContext(), code)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"user_id":      user.ID,
		"email":        user.Email,
		"name":         user.Name,
		"access_token": token,
	})
}
