// Package connectonboard обрабатывает онбординг продавцов.
package connectonboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/marketplace-payments/internal/http/middlewarectx"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/response"
	"github.com/magabrotheeeer/marketplace-payments/internal/lib/sl"
)

// Request представляет запрос на онбординг продавца.
type Request struct {
	Email string `json:"email" validate:"required,email"`
}

// Service определяет интерфейс бизнес-логики онбординга.
type Service interface {
	Onboard(ctx context.Context, userUID, email string) (string, error)
}

// Handler обрабатывает запросы онбординга продавцов.
type Handler struct {
	log            *slog.Logger
	connectService Service
	validate       *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, connectService Service) *Handler {
	return &Handler{
		log:            log,
		connectService: connectService,
		validate:       validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Начать онбординг продавца
// @Description Создает Connect-аккаунт продавца и возвращает ссылку для прохождения онбординга
// @Tags Connect
// @Accept  json
// @Produce  json
// @Param request body Request true "Почта продавца"
// @Success 200 {object} response.Response "Ссылка на онбординг"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /connect/onboard [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.connect.onboard"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user UID not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	url, err := h.connectService.Onboard(r.Context(), userUID, req.Email)
	if err != nil {
		log.Error("failed to onboard seller", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("onboarding link created")
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"onboarding_url": url,
	}))
}
