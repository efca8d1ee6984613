// Package webhook реализует сверку состояния площадки с событиями
// платежного провайдера. Обработчики запросов создают только исходные
// записи в статусе pending, все дальнейшие переходы статусов приходят
// исключительно отсюда.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/magabrotheeeer/marketplace-payments/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-payments/internal/models"
	"github.com/magabrotheeeer/marketplace-payments/internal/stripeapi"
)

// Repository определяет методы хранилища, нужные обработке вебхуков.
type Repository interface {
	UpdateTransactionStatus(ctx context.Context, intentID, status string) (int, error)
	UpdatePlanPurchaseStatus(ctx context.Context, id int, status string) (int, error)
	UpdatePlanPurchaseStatusBySubscriptionID(ctx context.Context, subscriptionID, status string) (int, error)
}

// MethodSaver сохраняет платежный метод, привязанный у провайдера.
type MethodSaver interface {
	SavePaymentMethod(ctx context.Context, userUID, stripeMethodID string) (int, error)
}

// AccountMirror зеркалирует флаги возможностей Connect-аккаунта.
type AccountMirror interface {
	MirrorAccountFlags(ctx context.Context, account *stripeapi.Account) error
}

// Service разбирает события провайдера и применяет их к хранилищу.
type Service struct {
	repo          Repository
	methods       MethodSaver
	accounts      AccountMirror
	webhookSecret string
	tolerance     time.Duration
	log           *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, methods MethodSaver, accounts AccountMirror,
	webhookSecret string, log *slog.Logger) *Service {
	return &Service{
		repo:          repo,
		methods:       methods,
		accounts:      accounts,
		webhookSecret: webhookSecret,
		tolerance:     5 * time.Minute,
		log:           log,
	}
}

// VerifyAndParse проверяет подпись тела вебхука и разбирает событие.
func (s *Service) VerifyAndParse(payload []byte, signatureHeader string) (*stripeapi.Event, error) {
	const op = "services.webhook.VerifyAndParse"

	if err := stripeapi.VerifySignature(payload, signatureHeader, s.webhookSecret, s.tolerance); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var event stripeapi.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &event, nil
}

// HandleEvent применяет событие провайдера. Незнакомые типы событий
// подтверждаются без обработки.
func (s *Service) HandleEvent(ctx context.Context, event *stripeapi.Event) error {
	const op = "services.webhook.HandleEvent"
	log := s.log.With(slog.String("op", op),
		slog.String("event_id", event.ID), slog.String("event_type", event.Type))

	switch event.Type {
	case stripeapi.EventPaymentIntentSucceeded:
		return s.handleIntentStatus(ctx, log, event, models.TransactionStatusSucceeded)
	case stripeapi.EventPaymentIntentFailed:
		return s.handleIntentStatus(ctx, log, event, models.TransactionStatusFailed)
	case stripeapi.EventPaymentIntentCanceled:
		return s.handleIntentStatus(ctx, log, event, models.TransactionStatusCanceled)
	case stripeapi.EventSetupIntentSucceeded:
		return s.handleSetupIntent(ctx, log, event)
	case stripeapi.EventSubscriptionUpdated, stripeapi.EventSubscriptionDeleted:
		return s.handleSubscription(ctx, log, event)
	case stripeapi.EventAccountUpdated:
		return s.handleAccount(ctx, event)
	default:
		log.Debug("ignored webhook event")
		return nil
	}
}

func (s *Service) handleIntentStatus(ctx context.Context, log *slog.Logger,
	event *stripeapi.Event, status string) error {
	const op = "services.webhook.handleIntentStatus"

	var intent stripeapi.PaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	updated, err := s.repo.UpdateTransactionStatus(ctx, intent.ID, status)
	if err != nil {
		log.Error("failed to update transaction status", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("reconciled transaction status",
		slog.String("intent_id", intent.ID),
		slog.String("status", status),
		slog.Int("rows", updated))

	if status != models.TransactionStatusSucceeded {
		return nil
	}

	// Платеж тарифа несет purchase_id в метаданных: покупка активируется.
	if rawID, ok := intent.Metadata["purchase_id"]; ok {
		purchaseID, err := strconv.Atoi(rawID)
		if err != nil {
			return fmt.Errorf("%s: parse purchase_id: %w", op, err)
		}
		if _, err := s.repo.UpdatePlanPurchaseStatus(ctx, purchaseID, models.PlanStatusActive); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		log.Info("activated plan purchase", slog.Int("purchase_id", purchaseID))
	}

	// Карта сохраняется только когда платеж запрашивал ее сохранение.
	// У разовых платежей setup_future_usage не выставляется никогда.
	if intent.SetupFutureUsage == "off_session" && intent.PaymentMethod != "" {
		buyerUID := intent.Metadata["buyer_uid"]
		if buyerUID == "" {
			log.Warn("intent requested card saving without buyer_uid metadata",
				slog.String("intent_id", intent.ID))
			return nil
		}
		if _, err := s.methods.SavePaymentMethod(ctx, buyerUID, intent.PaymentMethod); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

func (s *Service) handleSetupIntent(ctx context.Context, log *slog.Logger, event *stripeapi.Event) error {
	const op = "services.webhook.handleSetupIntent"

	var intent stripeapi.SetupIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	userUID := intent.Metadata["user_uid"]
	if userUID == "" || intent.PaymentMethod == "" {
		log.Warn("setup intent without user_uid or payment method", slog.String("setup_intent_id", intent.ID))
		return nil
	}
	if _, err := s.methods.SavePaymentMethod(ctx, userUID, intent.PaymentMethod); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) handleSubscription(ctx context.Context, log *slog.Logger, event *stripeapi.Event) error {
	const op = "services.webhook.handleSubscription"

	var subscription stripeapi.Subscription
	if err := json.Unmarshal(event.Data.Object, &subscription); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	status := planStatusFromSubscription(event.Type, subscription.Status)
	updated, err := s.repo.UpdatePlanPurchaseStatusBySubscriptionID(ctx, subscription.ID, status)
	if err != nil {
		log.Error("failed to update plan purchase status", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("reconciled plan purchase status",
		slog.String("subscription_id", subscription.ID),
		slog.String("status", status),
		slog.Int("rows", updated))
	return nil
}

func (s *Service) handleAccount(ctx context.Context, event *stripeapi.Event) error {
	const op = "services.webhook.handleAccount"

	var account stripeapi.Account
	if err := json.Unmarshal(event.Data.Object, &account); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.accounts.MirrorAccountFlags(ctx, &account); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// planStatusFromSubscription переводит статус подписки у провайдера
// в статус покупки тарифа.
func planStatusFromSubscription(eventType, subscriptionStatus string) string {
	if eventType == stripeapi.EventSubscriptionDeleted {
		return models.PlanStatusCanceled
	}
	switch subscriptionStatus {
	case "active", "trialing":
		return models.PlanStatusActive
	case "past_due", "unpaid":
		return models.PlanStatusPastDue
	case "canceled", "incomplete_expired":
		return models.PlanStatusCanceled
	default:
		return models.PlanStatusPending
	}
}
