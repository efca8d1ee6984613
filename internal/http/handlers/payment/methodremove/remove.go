// Package methodremove обрабатывает удаление сохраненного платежного метода.
package methodremove

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/marketplace-payments/internal/http/middlewarectx"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/response"
	"github.com/magabrotheeeer/marketplace-payments/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-payments/internal/services/payment"
)

// Service определяет интерфейс бизнес-логики платежных методов.
type Service interface {
	RemovePaymentMethod(ctx context.Context, userUID string, id int) error
}

// Handler обрабатывает запросы удаления платежного метода.
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
// @Summary Удалить платежный метод
// @Description Отвязывает платежный метод у провайдера и удаляет его запись
// @Tags PaymentMethods
// @Produce  json
// @Param id path int true "ID платежного метода"
// @Success 200 {object} response.Response "Метод удален"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Метод не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /payment-methods/{id} [delete]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.methodremove"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		log.Error("invalid payment method id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid payment method id"))
		return
	}

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user UID not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	if err := h.paymentService.RemovePaymentMethod(r.Context(), userUID, id); err != nil {
		if errors.Is(err, payment.ErrPaymentMethodNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("payment method not found"))
			return
		}
		log.Error("failed to remove payment method", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("payment method removed", slog.Int("id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"id": id}))
}
