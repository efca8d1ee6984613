// Package checkoutcreate обрабатывает покупку тарифа площадки.
package checkoutcreate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/marketplace-payments/internal/http/middlewarectx"
	"github.com/magabrotheeeer/marketplace-payments/internal/http/response"
	"github.com/magabrotheeeer/marketplace-payments/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-payments/internal/services/checkout"
)

// Request представляет запрос на покупку тарифа.
type Request struct {
	PlanType    string `json:"plan_type" validate:"required,oneof=recurring onetime"`
	PlanPriceID string `json:"plan_price_id,omitempty"`
	Amount      int64  `json:"amount,omitempty"`
	Currency    string `json:"currency" validate:"required,min=3,max=3"`
}

// Service определяет интерфейс бизнес-логики покупки тарифа.
type Service interface {
	CreateCheckout(ctx context.Context, userUID string, req checkout.CreateCheckoutRequest) (*checkout.CreateCheckoutResult, error)
}

// Handler обрабатывает запросы покупки тарифа.
type Handler struct {
	log             *slog.Logger
	checkoutService Service
	validate        *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, checkoutService Service) *Handler {
	return &Handler{
		log:             log,
		checkoutService: checkoutService,
		validate:        validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Купить тариф площадки
// @Description Оформляет регулярную подписку или разовый доступ к площадке
// @Tags Checkout
// @Accept  json
// @Produce  json
// @Param request body Request true "Параметры покупки тарифа"
// @Success 200 {object} response.Response "Покупка оформлена"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "У пользователя уже есть действующая покупка"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /checkout [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.create"

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

	result, err := h.checkoutService.CreateCheckout(r.Context(), userUID, checkout.CreateCheckoutRequest{
		PlanType:    req.PlanType,
		PlanPriceID: req.PlanPriceID,
		Amount:      req.Amount,
		Currency:    req.Currency,
	})
	if err != nil {
		if errors.Is(err, checkout.ErrActivePlanExists) {
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("already has an active subscription"))
			return
		}
		log.Error("failed to create checkout", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("checkout created", slog.Int("purchase_id", result.PurchaseID))
	render.JSON(w, r, response.StatusOKWithData(result))
}
