package wallet

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kudi-wallet/kudi_wallet/internal/ledger"
	"github.com/kudi-wallet/kudi_wallet/internal/paystack"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service  *Service
	provider paystack.Provider
}

// NewHandler builds a wallet HTTP handler. The provider is consulted for
// webhook signature verification only.
func NewHandler(service *Service, provider paystack.Provider) *Handler {
	return &Handler{service: service, provider: provider}
}

type depositRequest struct {
	Amount int64  `json:"amount"`
	Email  string `json:"email"`
}

// Deposit initiates a deposit and returns the provider redirect.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)
	email, _ := c.Locals("user_email").(string)
	if req.Email != "" {
		email = req.Email
	}

	intent, err := h.service.InitiateDeposit(c.UserContext(), DepositInput{
		OwnerID: uid,
		Email:   email,
		Amount:  req.Amount,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrDepositBelowMinimum):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ledger.ErrWalletNotFound):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		case errors.Is(err, paystack.ErrProviderRejected):
			return fiber.NewError(http.StatusBadGateway, "payment provider unavailable")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"reference":         intent.Reference,
		"authorization_url": intent.AuthorizationURL,
	})
}

// Webhook consumes Paystack charge events. The raw body is verified against
// the x-paystack-signature header before any parsing.
func (h *Handler) Webhook(c *fiber.Ctx) error {
	payload := c.Body()
	signature := c.Get("x-paystack-signature")
	if signature == "" || !h.provider.VerifySignature(payload, signature) {
		return fiber.NewError(http.StatusUnauthorized, "invalid signature")
	}

	var event paystack.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed event payload")
	}

	if err := h.service.HandleWebhook(c.UserContext(), event); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(http.StatusOK)
}

type transferRequest struct {
	WalletNumber string `json:"wallet_number"`
	Amount       int64  `json:"amount"`
}

// Transfer moves funds to another wallet by wallet number.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		OwnerID:      uid,
		WalletNumber: req.WalletNumber,
		Amount:       req.Amount,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ErrInvalidWalletNumber):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusBadRequest, "insufficient funds")
		case errors.Is(err, ledger.ErrSelfTransfer):
			return fiber.NewError(http.StatusBadRequest, "cannot transfer to own wallet")
		case errors.Is(err, ledger.ErrWalletNotFound):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"debit_reference":  res.DebitReference,
		"credit_reference": res.CreditReference,
		"balance":          res.SenderBalance,
		"completed_at":     res.CompletedAt,
	})
}

// Balance returns the authenticated owner's wallet balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	w, err := h.service.Balance(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_number": w.WalletNumber,
		"balance":       w.Balance,
	})
}

type transactionResponse struct {
	Reference             string            `json:"reference"`
	Kind                  string            `json:"kind"`
	Amount                int64             `json:"amount"`
	Status                string            `json:"status"`
	SenderWalletNumber    string            `json:"sender_wallet_number,omitempty"`
	RecipientWalletNumber string            `json:"recipient_wallet_number,omitempty"`
	Metadata              map[string]string `json:"metadata,omitempty"`
	CreatedAt             string            `json:"created_at"`
}

// Transactions returns the owner's history, newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return fiber.NewError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	history, err := h.service.History(c.UserContext(), uid, limit)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	}

	out := make([]transactionResponse, 0, len(history))
	for _, tx := range history {
		out = append(out, transactionResponse{
			Reference:             tx.Reference,
			Kind:                  tx.Kind,
			Amount:                tx.Amount,
			Status:                tx.Status,
			SenderWalletNumber:    tx.SenderWalletNumber,
			RecipientWalletNumber: tx.RecipientWalletNumber,
			Metadata:              tx.Metadata,
			CreatedAt:             tx.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": out})
}

// DepositStatus reports the state of one of the owner's deposit references.
func (h *Handler) DepositStatus(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	reference := c.Params("reference")

	tx, err := h.service.DepositStatus(c.UserContext(), uid, reference)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrTransactionNotFound):
			return fiber.NewError(http.StatusNotFound, "transaction not found")
		case errors.Is(err, ErrNotOwner):
			return fiber.NewError(http.StatusForbidden, "not the owner of this transaction")
		case errors.Is(err, ledger.ErrWalletNotFound):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"reference": tx.Reference,
		"status":    tx.Status,
		"amount":    tx.Amount,
	})
}
