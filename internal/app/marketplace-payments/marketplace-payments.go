// Package marketplacepayments собирает HTTP-приложение маркетплейса платежей.
package marketplacepayments

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/marketplace-payments/internal/cache"
	"github.com/magabrotheeeer/marketplace-payments/internal/config"
	"github.com/magabrotheeeer/marketplace-payments/internal/lib/jwt"
	"github.com/magabrotheeeer/marketplace-payments/internal/migrations"
	authservice "github.com/magabrotheeeer/marketplace-payments/internal/services/auth"
	checkoutservice "github.com/magabrotheeeer/marketplace-payments/internal/services/checkout"
	connectservice "github.com/magabrotheeeer/marketplace-payments/internal/services/connect"
	paymentservice "github.com/magabrotheeeer/marketplace-payments/internal/services/payment"
	webhookservice "github.com/magabrotheeeer/marketplace-payments/internal/services/webhook"
	"github.com/magabrotheeeer/marketplace-payments/internal/storage/repository"
	"github.com/magabrotheeeer/marketplace-payments/internal/stripeapi"
)

// App хранит ресурсы HTTP-приложения.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
}

// New инициализирует хранилище, кэш, сервисы и HTTP-сервер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	providerClient := stripeapi.NewClient(cfg.Stripe.SecretKey)
	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	authService := authservice.New(db, jwtMaker, logger)
	paymentService := paymentservice.New(db, providerClient, cacheRedis, cfg.Stripe.PlatformFeeBps, logger)
	checkoutService := checkoutservice.New(db, providerClient, cfg.Stripe.PlanPriceID,
		cfg.Stripe.OnetimeGrantPeriod, logger)
	connectService := connectservice.New(db, providerClient, cacheRedis,
		cfg.Stripe.OnboardingReturn, cfg.Stripe.OnboardingRefresh, logger)
	webhookService := webhookservice.New(db, paymentService, connectService,
		cfg.Stripe.WebhookSecret, logger)

	router := chi.NewRouter()

	RegisterRoutes(router, logger, db, authService, paymentService,
		checkoutService, connectService, webhookService)

	router.Get("/docs/*", httpSwagger.WrapHandler)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.db.DB.Close()
		return err
	}
}
