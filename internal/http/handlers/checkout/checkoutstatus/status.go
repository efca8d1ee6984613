// Package checkoutstatus обрабатывает запрос текущего тарифа пользователя.
package checkoutstatus

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

// Service определяет интерфейс бизнес-логики покупки тарифа.
type Service interface {
	GetActivePlan(ctx context.Context, userUID string) (*models.PlanPurchase, error)
}

// Handler обрабатывает запросы текущего тарифа.
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
// @Summary Текущий тариф пользователя
// @Description Возвращает действующую покупку тарифа площадки
// @Tags Checkout
// @Produce  json
// @Success 200 {object} response.Response "Действующая покупка"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Действующей покупки нет"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /checkout [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.status"

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

	plan, err := h.checkoutService.GetActivePlan(r.Context(), userUID)
	if err != nil {
		log.Error("failed to get active plan", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	if plan == nil {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("no active plan"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(plan))
}
