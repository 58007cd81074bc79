package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeTransaction(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/transaction/initialize", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "payer@example.com", req["email"])
		assert.Equal(t, float64(5000), req["amount"])

		json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Authorization URL created",
			"data": map[string]any{
				"authorization_url": "https://checkout.paystack.com/abc123",
				"access_code":       "abc123",
				"reference":         req["reference"],
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test_secret", "https://app.example.com/payment/callback")
	auth, err := c.InitializeTransaction(context.Background(), "payer@example.com", 5000, "dep_1_deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/abc123", auth.AuthorizationURL)
	assert.Equal(t, "dep_1_deadbeef", auth.Reference)
	assert.Equal(t, "Bearer sk_test_secret", gotAuth)
}

func TestInitializeTransactionProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"status": false, "message": "Invalid amount"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test_secret", "")
	_, err := c.InitializeTransaction(context.Background(), "payer@example.com", 0, "dep_x")
	require.ErrorIs(t, err, ErrProviderRejected)
	assert.Contains(t, err.Error(), "Invalid amount")
}

func TestVerifySignature(t *testing.T) {
	c := NewClient("https://api.paystack.co", "sk_test_secret", "")
	payload := []byte(`{"event":"charge.success","data":{"reference":"dep_1_feed"}}`)

	mac := hmac.New(sha512.New, []byte("sk_test_secret"))
	mac.Write(payload)
	valid := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, c.VerifySignature(payload, valid))
	assert.False(t, c.VerifySignature(payload, "deadbeef"))
	assert.False(t, c.VerifySignature([]byte(`tampered`), valid))
}
