// Package setupintent обрабатывает привязку платежного метода без списания.
package setupintent

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/marketplace-payments/internal/http/middlewarectx"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/response"
	"github.com/magabrotheeeer/marketplace-payments/internal/lib/sl"
)

// Service определяет интерфейс бизнес-логики платежных методов.
type Service interface {
	CreateSetupIntent(ctx context.Context, userUID string) (string, error)
}

// Handler обрабатывает запросы привязки платежного метода.
type Handler struct {
	log            *slog.Logger
	paymentService Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, paymentService Service) *Handler {
	return &Handler{
		log:            log,
		paymentService: paymentService,
	}
}

// ServeHTTP godoc
// @Summary Привязать платежный метод
// @Description Создает интент привязки карты без списания и возвращает client_secret
// @Tags PaymentMethods
// @Produce  json
// @Success 200 {object} response.Response "Интент создан"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /payment-methods/setup [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.setupintent"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user UID not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	clientSecret, err := h.paymentService.CreateSetupIntent(r.Context(), userUID)
	if err != nil {
		log.Error("failed to create setup intent", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("setup intent created")
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"client_secret": clientSecret,
	}))
}
