package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kudi-wallet/kudi_wallet/internal/auth"
)

// RegisterAuthRoutes wires the Google OAuth endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler) {
	group := r.Group("/auth")
	group.Get("/google/login", h.Login)
	group.Get("/google/callback", h.Callback)
}
