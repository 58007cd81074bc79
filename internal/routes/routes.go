package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kudi-wallet/kudi_wallet/internal/apikeys"
	"github.com/kudi-wallet/kudi_wallet/internal/auth"
	"github.com/kudi-wallet/kudi_wallet/internal/config"
	"github.com/kudi-wallet/kudi_wallet/internal/identity"
	"github.com/kudi-wallet/kudi_wallet/internal/ledger"
	"github.com/kudi-wallet/kudi_wallet/internal/middleware"
	"github.com/kudi-wallet/kudi_wallet/internal/notification"
	"github.com/kudi-wallet/kudi_wallet/internal/paystack"
	"github.com/kudi-wallet/kudi_wallet/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var store ledger.Store
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
	} else {
		store = ledger.NewInMemory()
	}

	var identityRepo identity.Repository
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
	}
	identitySvc := identity.NewService(identityRepo, store)

	var keyRepo apikeys.Repository
	if d.DB != nil {
		keyRepo = apikeys.NewPostgresRepository(d.DB)
	} else {
		keyRepo = apikeys.NewMemoryRepository()
	}
	keySvc := apikeys.NewService(keyRepo)

	var provider paystack.Provider
	if d.Cfg.PaystackSecretKey != "" {
		provider = paystack.NewClient(d.Cfg.PaystackBaseURL, d.Cfg.PaystackSecretKey, d.Cfg.PaystackCallbackURL)
	} else {
		provider = paystack.StaticProvider{}
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	walletSvc := wallet.NewService(store, provider, notifier, d.Logger)
	authSvc := auth.NewService(d.Cfg, identitySvc)

	authHandler := auth.NewHandler(authSvc)
	walletHandler := wallet.NewHandler(walletSvc, provider)
	keyHandler := apikeys.NewHandler(keySvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterAuthRoutes(api, authHandler)
	RegisterWebhookRoute(api, walletHandler, middleware.WebhookRateLimit(d.Cache, d.Cfg.WebhookRatePerMin))

	authmw := middleware.Auth(authSvc, keySvc, identitySvc)
	protected := api.Group("", authmw)
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterWalletRoutes(protected, walletHandler)
	RegisterAPIKeyRoutes(protected, keyHandler)

	return nil
}
