// Package connectstatus обрабатывает запрос статуса продавца.
package connectstatus

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
	"github.com/magabrotheeeer/marketplace-payments/internal/models"
	"github.com/magabrotheeeer/marketplace-payments/internal/services/connect"
)

// Service определяет интерфейс бизнес-логики онбординга.
type Service interface {
	Status(ctx context.Context, userUID string) (*models.ConnectAccount, error)
}

// Handler обрабатывает запросы статуса продавца.
type Handler struct {
	log            *slog.Logger
	connectService Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, connectService Service) *Handler {
	return &Handler{
		log:            log,
		connectService: connectService,
	}
}

// ServeHTTP godoc
// @Summary Статус продавца
// @Description Возвращает флаги возможностей Connect-аккаунта продавца
// @Tags Connect
// @Produce  json
// @Success 200 {object} response.Response "Состояние аккаунта"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Продавец не проходил онбординг"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /connect/status [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.connect.status"

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

	account, err := h.connectService.Status(r.Context(), userUID)
	if err != nil {
		if errors.Is(err, connect.ErrNotOnboarded) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("seller has no payout account"))
			return
		}
		log.Error("failed to get seller status", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(account))
}
