package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrProviderRejected indicates Paystack refused or failed the request; the
// caller sees this as an external-service failure with no ledger side effect
// beyond any already-persisted pending row.
var ErrProviderRejected = errors.New("payment provider rejected the request")

// EventChargeSuccess is the only event type that drives crediting.
const EventChargeSuccess = "charge.success"

// EventChargeFailed reports a terminally failed charge.
const EventChargeFailed = "charge.failed"

// Provider abstracts the payment collaborator so the wallet service can be
// tested against a stub.
type Provider interface {
	// InitializeTransaction asks the provider for a hosted payment page for
	// the given reference. The amount is in minor units (kobo).
	InitializeTransaction(ctx context.Context, email string, amount int64, reference string) (Authorization, error)
	// VerifySignature reports whether the webhook payload carries a valid
	// provider signature.
	VerifySignature(payload []byte, signature string) bool
}

// Authorization is the provider-hosted redirect target for a deposit.
type Authorization struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// Event is the webhook envelope Paystack delivers. Delivery is at-least-once
// and unordered; everything except the reference is advisory.
type Event struct {
	Event string    `json:"event"`
	Data  EventData `json:"data"`
}

// EventData is the payload of a charge event.
type EventData struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
	PaidAt    string `json:"paid_at"`
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
}

// Client talks to the Paystack REST API.
type Client struct {
	baseURL     string
	secretKey   string
	callbackURL string
	httpClient  *http.Client
}

// NewClient builds a Paystack client. callbackURL is where the hosted page
// redirects the payer after completion.
func NewClient(baseURL, secretKey, callbackURL string) *Client {
	return &Client{
		baseURL:     baseURL,
		secretKey:   secretKey,
		callbackURL: callbackURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

type initializeRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// InitializeTransaction creates a hosted payment page for the reference.
func (c *Client) InitializeTransaction(ctx context.Context, email string, amount int64, reference string) (Authorization, error) {
	body, err := json.Marshal(initializeRequest{
		Email:       email,
		Amount:      amount,
		Reference:   reference,
		CallbackURL: c.callbackURL,
	})
	if err != nil {
		return Authorization{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return Authorization{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Authorization{}, fmt.Errorf("%w: %v", ErrProviderRejected, err)
	}
	defer resp.Body.Close()

	var decoded initializeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Authorization{}, fmt.Errorf("%w: decode response: %v", ErrProviderRejected, err)
	}
	if resp.StatusCode != http.StatusOK || !decoded.Status {
		return Authorization{}, fmt.Errorf("%w: %s", ErrProviderRejected, decoded.Message)
	}

	return Authorization{
		AuthorizationURL: decoded.Data.AuthorizationURL,
		AccessCode:       decoded.Data.AccessCode,
		Reference:        decoded.Data.Reference,
	}, nil
}

// VerifySignature checks the x-paystack-signature header: HMAC-SHA512 of the
// raw payload keyed by the secret key, hex encoded.
func (c *Client) VerifySignature(payload []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// StaticProvider simulates a successful provider for tests and development.
type StaticProvider struct{}

// InitializeTransaction approves every request with a synthetic redirect.
func (StaticProvider) InitializeTransaction(_ context.Context, _ string, _ int64, reference string) (Authorization, error) {
	return Authorization{
		AuthorizationURL: "https://checkout.example.test/" + reference,
		AccessCode:       "access_" + reference,
		Reference:        reference,
	}, nil
}

// VerifySignature accepts every payload.
func (StaticProvider) VerifySignature(_ []byte, _ string) bool { return true }
