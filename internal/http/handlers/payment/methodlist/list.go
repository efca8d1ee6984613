// Package methodlist обрабатывает получение сохраненных платежных методов.
package methodlist

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/marketplace-payments/internal/http/middlewarectx"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/response"
	"github.com/magabrotheeeer/marketplace-payments/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-payments/internal/models"
)

// Service определяет интерфейс бизнес-логики платежных методов.
type Service interface {
	ListPaymentMethods(ctx context.Context, userUID string) ([]*models.PaymentMethod, error)
}

// Handler обрабатывает запросы списка платежных методов.
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
// @Summary Список платежных методов
// @Description Возвращает сохраненные платежные методы пользователя
// @Tags PaymentMethods
// @Produce  json
// @Success 200 {object} response.Response "Список методов"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /payment-methods [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.methodlist"

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

	methods, err := h.paymentService.ListPaymentMethods(r.Context(), userUID)
	if err != nil {
		log.Error("failed to list payment methods", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(methods))
}
