// Package checkout реализует покупку тарифа площадки: регулярную
// подписку у провайдера или разовый доступ с датой окончания.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/magabrotheeeer/marketplace-payments/internal/models"
	"github.com/magabrotheeeer/marketplace-payments/internal/stripeapi"
)

// Ошибки бизнес-правил покупки тарифа.
var (
	ErrActivePlanExists = errors.New("user already has an active subscription")
	ErrNoActivePlan     = errors.New("user has no active subscription")
	ErrUnknownPlanType  = errors.New("unknown plan type")
)

// Repository определяет методы хранилища, нужные сервису покупки тарифа.
type Repository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetProfile(ctx context.Context, userUID string) (*models.Profile, error)
	CreateProfile(ctx context.Context, userUID string) error
	SetStripeCustomerID(ctx context.Context, userUID, customerID string) error

	GetActivePlanPurchase(ctx context.Context, userUID string) (*models.PlanPurchase, error)
	CreatePlanPurchase(ctx context.Context, purchase models.PlanPurchase) (int, error)
	UpdatePlanPurchaseStatus(ctx context.Context, id int, status string) (int, error)
}

// ProviderClient определяет операции платежного провайдера, нужные сервису.
type ProviderClient interface {
	CreateCustomer(ctx context.Context, req stripeapi.CreateCustomerRequest) (*stripeapi.Customer, error)
	CreateSubscription(ctx context.Context, req stripeapi.CreateSubscriptionRequest) (*stripeapi.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*stripeapi.Subscription, error)
	CreatePaymentIntent(ctx context.Context, req stripeapi.CreatePaymentIntentRequest) (*stripeapi.PaymentIntent, error)
}

// Service реализует бизнес-логику покупки тарифа.
type Service struct {
	repo        Repository
	provider    ProviderClient
	planPriceID string
	grantPeriod time.Duration
	log         *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, provider ProviderClient, planPriceID string,
	grantPeriod time.Duration, log *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		provider:    provider,
		planPriceID: planPriceID,
		grantPeriod: grantPeriod,
		log:         log,
	}
}

// CreateCheckoutRequest параметры покупки тарифа.
type CreateCheckoutRequest struct {
	PlanType    string
	PlanPriceID string // пустая строка — берется тариф из конфигурации
	Amount      int64  // только для разового доступа
	Currency    string
}

// CreateCheckoutResult результат оформления покупки тарифа.
type CreateCheckoutResult struct {
	PurchaseID     int    `json:"purchase_id"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	ClientSecret   string `json:"client_secret,omitempty"`
	Status         string `json:"status"`
}

// CreateCheckout оформляет покупку тарифа. Пока у пользователя есть
// действующая покупка, новая не создается. Запись создается в статусе
// pending, активацию выполняет обработка вебхуков провайдера.
func (s *Service) CreateCheckout(ctx context.Context, userUID string, req CreateCheckoutRequest) (*CreateCheckoutResult, error) {
	const op = "services.checkout.CreateCheckout"
	log := s.log.With(slog.String("op", op), slog.String("user_uid", userUID))

	active, err := s.repo.GetActivePlanPurchase(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if active != nil {
		return nil, ErrActivePlanExists
	}

	customerID, err := s.getOrCreateCustomer(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch req.PlanType {
	case models.PlanTypeRecurring:
		return s.createRecurring(ctx, log, userUID, customerID, req)
	case models.PlanTypeOnetime:
		return s.createOnetime(ctx, log, userUID, customerID, req)
	default:
		return nil, ErrUnknownPlanType
	}
}

func (s *Service) createRecurring(ctx context.Context, log *slog.Logger,
	userUID, customerID string, req CreateCheckoutRequest) (*CreateCheckoutResult, error) {
	const op = "services.checkout.createRecurring"

	priceID := req.PlanPriceID
	if priceID == "" {
		priceID = s.planPriceID
	}

	subscription, err := s.provider.CreateSubscription(ctx, stripeapi.CreateSubscriptionRequest{
		Customer: customerID,
		PriceID:  priceID,
		Metadata: map[string]string{"user_uid": userUID},
	})
	if err != nil {
		log.Error("provider rejected subscription", slog.Any("err", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	purchaseID, err := s.repo.CreatePlanPurchase(ctx, models.PlanPurchase{
		UserUID:              userUID,
		StripeSubscriptionID: subscription.ID,
		PlanType:             models.PlanTypeRecurring,
		Status:               models.PlanStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var clientSecret string
	if subscription.LatestInvoice != nil && subscription.LatestInvoice.PaymentIntent != nil {
		clientSecret = subscription.LatestInvoice.PaymentIntent.ClientSecret
	}

	log.Info("created recurring plan purchase",
		slog.Int("purchase_id", purchaseID),
		slog.String("subscription_id", subscription.ID))

	return &CreateCheckoutResult{
		PurchaseID:     purchaseID,
		SubscriptionID: subscription.ID,
		ClientSecret:   clientSecret,
		Status:         models.PlanStatusPending,
	}, nil
}

func (s *Service) createOnetime(ctx context.Context, log *slog.Logger,
	userUID, customerID string, req CreateCheckoutRequest) (*CreateCheckoutResult, error) {
	const op = "services.checkout.createOnetime"

	expiresAt := time.Now().Add(s.grantPeriod)
	purchaseID, err := s.repo.CreatePlanPurchase(ctx, models.PlanPurchase{
		UserUID:   userUID,
		PlanType:  models.PlanTypeOnetime,
		Status:    models.PlanStatusPending,
		ExpiresAt: &expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Оплата тарифа идет площадке напрямую, без перевода продавцу
	// и без сохранения платежного метода.
	intent, err := s.provider.CreatePaymentIntent(ctx, stripeapi.CreatePaymentIntentRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Customer: customerID,
		Metadata: map[string]string{
			"user_uid":    userUID,
			"purchase_id": strconv.Itoa(purchaseID),
		},
	})
	if err != nil {
		log.Error("provider rejected plan payment intent", slog.Any("err", err))
		// Без отмены записи повторная покупка упиралась бы в ErrActivePlanExists.
		if _, cancelErr := s.repo.UpdatePlanPurchaseStatus(ctx, purchaseID, models.PlanStatusCanceled); cancelErr != nil {
			log.Error("failed to cancel stale plan purchase",
				slog.Int("purchase_id", purchaseID), slog.Any("err", cancelErr))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("created onetime plan purchase",
		slog.Int("purchase_id", purchaseID),
		slog.Time("expires_at", expiresAt))

	return &CreateCheckoutResult{
		PurchaseID:   purchaseID,
		ClientSecret: intent.ClientSecret,
		Status:       models.PlanStatusPending,
	}, nil
}

// CancelCheckout отменяет действующую покупку тарифа пользователя.
// Для регулярной подписки отмена выполняется и у провайдера.
func (s *Service) CancelCheckout(ctx context.Context, userUID string) error {
	const op = "services.checkout.CancelCheckout"
	log := s.log.With(slog.String("op", op), slog.String("user_uid", userUID))

	active, err := s.repo.GetActivePlanPurchase(ctx, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if active == nil {
		return ErrNoActivePlan
	}

	if active.StripeSubscriptionID != "" {
		if _, err := s.provider.CancelSubscription(ctx, active.StripeSubscriptionID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if _, err := s.repo.UpdatePlanPurchaseStatus(ctx, active.ID, models.PlanStatusCanceled); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("canceled plan purchase", slog.Int("purchase_id", active.ID))
	return nil
}

// GetActivePlan возвращает действующую покупку тарифа или nil.
func (s *Service) GetActivePlan(ctx context.Context, userUID string) (*models.PlanPurchase, error) {
	return s.repo.GetActivePlanPurchase(ctx, userUID)
}

// getOrCreateCustomer возвращает ID покупателя у провайдера,
// лениво создавая профиль и покупателя при первой оплате.
func (s *Service) getOrCreateCustomer(ctx context.Context, userUID string) (string, error) {
	const op = "services.checkout.getOrCreateCustomer"

	profile, err := s.repo.GetProfile(ctx, userUID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if profile == nil {
		if err := s.repo.CreateProfile(ctx, userUID); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		profile = &models.Profile{UserUID: userUID}
	}
	if profile.StripeCustomerID != "" {
		return profile.StripeCustomerID, nil
	}

	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	customer, err := s.provider.CreateCustomer(ctx, stripeapi.CreateCustomerRequest{
		Email:    user.Email,
		Metadata: map[string]string{"user_uid": userUID},
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.SetStripeCustomerID(ctx, userUID, customer.ID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return customer.ID, nil
}
