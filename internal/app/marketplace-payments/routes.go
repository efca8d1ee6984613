// Package marketplacepayments предоставляет маршруты для основного приложения.
package marketplacepayments

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/marketplace-payments/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/handlers/checkout/checkoutcancel"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/handlers/checkout/checkoutcreate"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/handlers/checkout/checkoutstatus"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/handlers/connect/connectonboard"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/handlers/connect/connectstatus"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/handlers/health"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/handlers/payment/intentcreate"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/handlers/payment/methodlist"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/handlers/payment/methodremove"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/handlers/payment/methodsetdefault"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/handlers/payment/setupintent"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/handlers/payment/transactionlist"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/handlers/providerwebhook"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/middlewarectx"
	authservice "github.com/magabrotheeeer/marketplace-payments/internal/services/auth"
	checkoutservice "github.com/magabrotheeeer/marketplace-payments/internal/services/checkout"
	connectservice "github.com/magabrotheeeer/marketplace-payments/internal/services/connect"
	paymentservice "github.com/magabrotheeeer/marketplace-payments/internal/services/payment"
	webhookservice "github.com/magabrotheeeer/marketplace-payments/internal/services/webhook"
	"github.com/magabrotheeeer/marketplace-payments/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, db *repository.Storage,
	authService *authservice.Service, paymentService *paymentservice.Service,
	checkoutService *checkoutservice.Service, connectService *connectservice.Service,
	webhookService *webhookservice.Service) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, authService).ServeHTTP)
		r.Post("/login", login.New(logger, authService).ServeHTTP)
		r.Get("/health", health.New(logger, db).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(authService, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/payments", intentcreate.New(logger, paymentService).ServeHTTP)
			r.Get("/payments/list", transactionlist.New(logger, paymentService).ServeHTTP)
			r.Get("/payment-methods", methodlist.New(logger, paymentService).ServeHTTP)
			r.Post("/payment-methods/setup", setupintent.New(logger, paymentService).ServeHTTP)
			r.Put("/payment-methods/{id}/default", methodsetdefault.New(logger, paymentService).ServeHTTP)
			r.Delete("/payment-methods/{id}", methodremove.New(logger, paymentService).ServeHTTP)
			r.Post("/checkout", checkoutcreate.New(logger, checkoutService).ServeHTTP)
			r.Delete("/checkout", checkoutcancel.New(logger, checkoutService).ServeHTTP)
			r.Get("/checkout", checkoutstatus.New(logger, checkoutService).ServeHTTP)
			r.Post("/connect/onboard", connectonboard.New(logger, connectService).ServeHTTP)
			r.Get("/connect/status", connectstatus.New(logger, connectService).ServeHTTP)
		})

		// Webhook endpoint (без аутентификации)
		r.Post("/payments/webhook", providerwebhook.New(logger, webhookService).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
}
