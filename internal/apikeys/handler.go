package apikeys

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes API key management endpoints. These are JWT-only: an API
// key cannot mint or revoke other API keys.
type Handler struct {
	service *Service
}

// NewHandler constructs an API key handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createKeyRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	Expiry      string   `json:"expiry"`
}

type rolloverRequest struct {
	ExpiredKeyID string `json:"expired_key_id"`
	Expiry       string `json:"expiry"`
}

type keyResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`
	Revoked     bool      `json:"revoked"`
	CreatedAt   time.Time `json:"created_at"`
}

// Create issues a new key; the plain secret appears only in this response.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	issued, err := h.service.Create(c.UserContext(), CreateInput{
		UserID:      uid,
		Name:        req.Name,
		Permissions: req.Permissions,
		Expiry:      req.Expiry,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidPermissions), errors.Is(err, ErrInvalidExpiry), errors.Is(err, ErrTooManyKeys):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"id":         issued.ID,
		"api_key":    issued.PlainKey,
		"expires_at": issued.ExpiresAt,
	})
}

// List returns the caller's keys without secret material.
func (h *Handler) List(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	keys, err := h.service.List(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]keyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, keyResponse{
			ID:          k.ID,
			Name:        k.Name,
			Permissions: k.Permissions,
			ExpiresAt:   k.ExpiresAt,
			Revoked:     k.Revoked,
			CreatedAt:   k.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"api_keys": out})
}

// Rollover replaces an expired key.
func (h *Handler) Rollover(c *fiber.Ctx) error {
	var req rolloverRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	issued, err := h.service.Rollover(c.UserContext(), uid, req.ExpiredKeyID, req.Expiry)
	if err != nil {
		switch {
		case errors.Is(err, ErrKeyNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrKeyNotExpired), errors.Is(err, ErrInvalidExpiry), errors.Is(err, ErrTooManyKeys):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"id":         issued.ID,
		"api_key":    issued.PlainKey,
		"expires_at": issued.ExpiresAt,
	})
}

// Revoke disables a key permanently.
func (h *Handler) Revoke(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if err := h.service.Revoke(c.UserContext(), uid, c.Params("keyId")); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "revoked"})
}
