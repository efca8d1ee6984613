// Package checkoutcancel обрабатывает отмену покупки тарифа.
package checkoutcancel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/marketplace-payments/internal/http/middlewarectx"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/response"
	"github.com/magabrotheeeer/marketplace-payments/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-payments/internal/services/checkout"
)

// Service определяет интерфейс бизнес-логики покупки тарифа.
type Service interface {
	CancelCheckout(ctx context.Context, userUID string) error
}

// Handler обрабатывает запросы отмены покупки тарифа.
type Handler struct {
	log             *slog.Logger
	checkoutService Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, checkoutService Service) *Handler {
	return &Handler{
		log:             log,
		checkoutService: checkoutService,
	}
}

// ServeHTTP godoc
// @Summary Отменить покупку тарифа
// @Description Отменяет действующую подписку или разовый доступ пользователя
// @Tags Checkout
// @Produce  json
// @Success 200 {object} response.Response "Покупка отменена"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Действующей покупки нет"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /checkout [delete]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.cancel"

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

	if err := h.checkoutService.CancelCheckout(r.Context(), userUID); err != nil {
		if errors.Is(err, checkout.ErrNoActivePlan) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("no active subscription"))
			return
		}
		log.Error("failed to cancel checkout", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("checkout canceled")
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "subscription canceled",
	}))
}
