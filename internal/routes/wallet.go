package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kudi-wallet/kudi_wallet/internal/apikeys"
	"github.com/kudi-wallet/kudi_wallet/internal/middleware"
	"github.com/kudi-wallet/kudi_wallet/internal/wallet"
)

// RegisterWebhookRoute wires the unauthenticated provider webhook. Its only
// protection is the payload signature check plus an IP rate limit.
func RegisterWebhookRoute(r fiber.Router, h *wallet.Handler, rateLimiter fiber.Handler) {
	if rateLimiter != nil {
		r.Post("/wallet/paystack/webhook", rateLimiter, h.Webhook)
		return
	}
	r.Post("/wallet/paystack/webhook", h.Webhook)
}

// RegisterWalletRoutes wires the authenticated wallet endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	group := r.Group("/wallet")
	group.Post("/deposit", middleware.RequirePermission(apikeys.PermissionDeposit), h.Deposit)
	group.Post("/transfer", middleware.RequirePermission(apikeys.PermissionTransfer), h.Transfer)
	group.Get("/balance", middleware.RequirePermission(apikeys.PermissionRead), h.Balance)
	group.Get("/transactions", middleware.RequirePermission(apikeys.PermissionRead), h.Transactions)
	group.Get("/deposit/:reference/status", middleware.RequirePermission(apikeys.PermissionRead), h.DepositStatus)
}
