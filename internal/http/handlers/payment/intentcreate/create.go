// Package intentcreate обрабатывает создание платежа покупателя продавцу.
package intentcreate

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
	"github.com/magabrotheeeer/marketplace-payments/internal/services/payment"
)

// Request представляет запрос на создание платежа.
type Request struct {
	SellerUID       string `json:"seller_uid" validate:"required,uuid"`
	Amount          int64  `json:"amount" validate:"required,gt=0"`
	Currency        string `json:"currency" validate:"required,min=3,max=3"`
	CheckoutType    string `json:"checkout_type" validate:"required,oneof=express onetime"`
	PaymentMethodID int    `json:"payment_method_id,omitempty"`
}

// Service определяет интерфейс бизнес-логики платежей.
type Service interface {
	CreatePaymentIntent(ctx context.Context, buyerUID string, req payment.CreateIntentRequest) (*payment.CreateIntentResult, error)
}

// Handler обрабатывает запросы на создание платежа.
type Handler struct {
	log            *slog.Logger
	paymentService Service
	validate       *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, paymentService Service) *Handler {
	return &Handler{
		log:            log,
		paymentService: paymentService,
		validate:       validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать платеж
// @Description Создает платеж покупателя продавцу с удержанием комиссии площадки
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body Request true "Данные платежа"
// @Success 200 {object} response.Response "Платеж создан"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или самопокупка"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Платежный метод не найден"
// @Failure 409 {object} response.ErrorResponse "Продавец не готов принимать платежи"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /payments [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.intentcreate"

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

	buyerUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || buyerUID == "" {
		log.Error("user UID not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	result, err := h.paymentService.CreatePaymentIntent(r.Context(), buyerUID, payment.CreateIntentRequest{
		SellerUID:       req.SellerUID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		CheckoutType:    req.CheckoutType,
		PaymentMethodID: req.PaymentMethodID,
	})
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrSelfPurchase):
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("cannot purchase from yourself"))
		case errors.Is(err, payment.ErrSellerNotOnboarded), errors.Is(err, payment.ErrChargesDisabled):
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("seller cannot accept payments yet"))
		case errors.Is(err, payment.ErrPaymentMethodNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("payment method not found"))
		default:
			log.Error("failed to create payment intent", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
		}
		return
	}

	log.Info("payment intent created", slog.String("intent_id", result.IntentID))
	render.JSON(w, r, response.StatusOKWithData(result))
}
