// Package providerwebhook принимает вебхуки платежного провайдера.
//
// Тело читается до разбора JSON, потому что подпись считается
// по исходным байтам запроса.
package providerwebhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/marketplace-payments/internal/http/response"
	"github.com/magabrotheeeer/marketplace-payments/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-payments/internal/stripeapi"
)

// Подпись приходит в этом заголовке.
const signatureHeader = "Stripe-Signature"

const maxBodySize = 1 << 16

// Service определяет интерфейс обработки вебхуков.
type Service interface {
	VerifyAndParse(payload []byte, signatureHeader string) (*stripeapi.Event, error)
	HandleEvent(ctx context.Context, event *stripeapi.Event) error
}

// Handler обрабатывает вебхуки провайдера.
type Handler struct {
	log            *slog.Logger
	webhookService Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, webhookService Service) *Handler {
	return &Handler{
		log:            log,
		webhookService: webhookService,
	}
}

// ServeHTTP godoc
// @Summary Вебхук платежного провайдера
// @Description Принимает события провайдера, проверяет подпись и сверяет состояние площадки
// @Tags Webhooks
// @Accept  json
// @Produce  json
// @Success 200 {object} response.Response "Событие обработано"
// @Failure 400 {object} response.ErrorResponse "Неверная подпись или тело"
// @Failure 500 {object} response.ErrorResponse "Ошибка обработки события"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.providerwebhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	event, err := h.webhookService.VerifyAndParse(payload, r.Header.Get(signatureHeader))
	if err != nil {
		if errors.Is(err, stripeapi.ErrInvalidSignature) || errors.Is(err, stripeapi.ErrStaleTimestamp) {
			log.Warn("rejected webhook with bad signature", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid signature"))
			return
		}
		log.Error("failed to parse webhook", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.webhookService.HandleEvent(r.Context(), event); err != nil {
		log.Error("failed to handle webhook event", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to process event"))
		return
	}

	log.Info("webhook processed", slog.String("event_type", event.Type))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"event_id": event.ID,
	}))
}
