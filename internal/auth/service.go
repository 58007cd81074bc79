package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/kudi-wallet/kudi_wallet/internal/config"
	"github.com/kudi-wallet/kudi_wallet/internal/identity"
)

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// ErrInvalidToken indicates a JWT that failed verification.
var ErrInvalidToken = errors.New("invalid token")

// Service signs session tokens and drives the Google sign-in exchange.
type Service struct {
	cfg         config.Config
	ids         *identity.Service
	oauth       *oauth2.Config
	userInfoURL string
}

// NewService builds the auth service.
func NewService(cfg config.Config, ids *identity.Service) *Service {
	return &Service{
		cfg: cfg,
		ids: ids,
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleCallbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: defaultUserInfoURL,
	}
}

// LoginURL returns the Google consent page URL for the given state.
func (s *Service) LoginURL(state string) string {
	return s.oauth.AuthCodeURL(state)
}

type googleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// HandleCallback exchanges the authorization code, establishes the user (and
// wallet, on first sign-in) and returns a signed session token.
func (s *Service) HandleCallback(ctx context.Context, code string) (identity.User, string, error) {
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return identity.User{}, "", fmt.Errorf("exchange authorization code: %w", err)
	}

	profile, err := s.fetchProfile(ctx, token)
	if err != nil {
		return identity.User{}, "", err
	}

	user, err := s.ids.EstablishFromGoogle(ctx, profile)
	if err != nil {
		return identity.User{}, "", err
	}

	signed, err := s.Sign(user)
	if err != nil {
		return identity.User{}, "", err
	}
	return user, signed, nil
}

func (s *Service) fetchProfile(ctx context.Context, token *oauth2.Token) (identity.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return identity.Profile{}, err
	}
	resp, err := s.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return identity.Profile{}, fmt.Errorf("fetch google profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return identity.Profile{}, fmt.Errorf("fetch google profile: status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return identity.Profile{}, fmt.Errorf("decode google profile: %w", err)
	}
	return identity.Profile{
		GoogleID: info.ID,
		Email:    info.Email,
		Name:     info.Name,
		Picture:  info.Picture,
	}, nil
}

type sessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Sign issues a session token for the user.
func (s *Service) Sign(user identity.User) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
}

// Verify validates a session token and returns the subject user ID.
func (s *Service) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
