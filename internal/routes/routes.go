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

	"github.com/sol-pay/sol_backend/internal/admin"
	"github.com/sol-pay/sol_backend/internal/auth"
	"github.com/sol-pay/sol_backend/internal/config"
	"github.com/sol-pay/sol_backend/internal/identity"
	"github.com/sol-pay/sol_backend/internal/ledger"
	"github.com/sol-pay/sol_backend/internal/middleware"
	"github.com/sol-pay/sol_backend/internal/notification"
	"github.com/sol-pay/sol_backend/internal/provider"
	"github.com/sol-pay/sol_backend/internal/wallet"
	"github.com/sol-pay/sol_backend/internal/webhooks"
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
	if !d.Cfg.IsDev() {
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

	// Storage backends fall back to memory in development.
	var ledgerBackend ledger.Ledger
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
	}
	statsBackend, ok := ledgerBackend.(ledger.StatsProvider)
	if !ok {
		return fmt.Errorf("ledger backend does not provide stats")
	}

	var identityRepo identity.Repository
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
	}

	gateway, err := buildGateway(d.Cfg)
	if err != nil {
		return err
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	identitySvc := identity.NewService(identityRepo)
	tokenSvc := auth.NewTokenService(d.Cfg.JWTSecret, d.Cfg.TokenTTL)
	walletSvc := wallet.NewService(ledgerBackend, identityRepo, gateway, notifier, d.Logger, wallet.Config{
		MaxTopUp: d.Cfg.MaxTopUp,
		QrisMode: ledger.SettlementMode(d.Cfg.QrisSettlementMode),
	})
	adminSvc := admin.NewService(ledgerBackend, statsBackend, identityRepo, notifier, d.Logger,
		d.Cfg.AdminEmail, d.Cfg.AdminPassword)

	authHandler := auth.NewHandler(identitySvc, tokenSvc, ledgerBackend)
	walletHandler := wallet.NewHandler(walletSvc)
	adminHandler := admin.NewHandler(adminSvc, tokenSvc)
	webhookHandler := webhooks.NewHandler(walletSvc, identitySvc, notifier,
		d.Cfg.PaymentWebhookSecret, d.Cfg.KYCWebhookSecret)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterAuthRoutes(api, authHandler, middleware.LoginRateLimit(d.Cache, 5))
	RegisterWebhookRoutes(api, webhookHandler, d.Cfg.IsDev())

	userMW := middleware.RequireUser(tokenSvc)
	idemMW := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	RegisterWalletRoutes(api.Group("/wallet", userMW), walletHandler, idemMW)
	api.Get("/auth/profile", userMW, authHandler.Profile)

	RegisterAdminRoutes(api.Group("/admin"), adminHandler, middleware.RequireAdmin(tokenSvc))

	return nil
}

func buildGateway(cfg config.Config) (provider.Gateway, error) {
	switch cfg.PaymentGateway {
	case "midtrans":
		return provider.NewMidtransGateway(cfg.MidtransServerKey), nil
	case "sandbox", "":
		return provider.NewSandboxGateway(cfg.SandboxClientID, cfg.SandboxClientSecret), nil
	default:
		return nil, fmt.Errorf("unknown payment gateway: %q", cfg.PaymentGateway)
	}
}
