// Package methodsetdefault обрабатывает выбор платежного метода по умолчанию.
package methodsetdefault

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/marketplace-payments/internal/http/middlewarectx"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/response"
	"github.com/magabrotheeeer/marketplace-payments/internal/lib/sl"
)

// Service определяет интерфейс бизнес-логики платежных методов.
type Service interface {
	SetDefaultPaymentMethod(ctx context.Context, userUID string, id int) error
}

// Handler обрабатывает запросы выбора метода по умолчанию.
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
// @Summary Сделать метод методом по умолчанию
// @Description Делает сохраненный платежный метод методом по умолчанию. У пользователя может быть не более одного метода по умолчанию.
// @Tags PaymentMethods
// @Produce  json
// @Param id path int true "ID платежного метода"
// @Success 200 {object} response.Response "Метод обновлен"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Метод не найден"
// @Router /payment-methods/{id}/default [put]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.methodsetdefault"

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

	if err := h.paymentService.SetDefaultPaymentMethod(r.Context(), userUID, id); err != nil {
		log.Error("failed to set default payment method", sl.Err(err))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("payment method not found"))
		return
	}

	log.Info("default payment method updated", slog.Int("id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"id": id}))
}
