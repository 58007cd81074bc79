package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kudi-wallet/kudi_wallet/internal/apikeys"
	"github.com/kudi-wallet/kudi_wallet/internal/middleware"
)

// RegisterAPIKeyRoutes wires key management. Only session-authenticated
// users may manage keys.
func RegisterAPIKeyRoutes(r fiber.Router, h *apikeys.Handler) {
	group := r.Group("/api-keys", middleware.RequireSession())
	group.Post("/", h.Create)
	group.Get("/", h.List)
	group.Post("/rollover", h.Rollover)
	group.Delete("/:keyId", h.Revoke)
}
