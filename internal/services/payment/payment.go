// Package payment реализует оркестрацию платежей маркетплейса:
// выбор платежного метода, создание destination charge с комиссией
// площадки и запись транзакции.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/marketplace-payments/internal/lib/money"
	"github.com/magabrotheeeer/marketplace-payments/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-payments/internal/models"
	"github.com/magabrotheeeer/marketplace-payments/internal/stripeapi"
)

// Ошибки бизнес-правил, которые обработчики переводят в HTTP статусы.
var (
	ErrSelfPurchase          = errors.New("buyer and seller are the same user")
	ErrSellerNotOnboarded    = errors.New("seller has no payout account")
	ErrChargesDisabled       = errors.New("seller account cannot accept charges yet")
	ErrPaymentMethodNotFound = errors.New("payment method not found")
	ErrUnknownCheckoutType   = errors.New("unknown checkout type")
)

// Repository определяет методы хранилища, нужные платежному сервису.
type Repository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetProfile(ctx context.Context, userUID string) (*models.Profile, error)
	CreateProfile(ctx context.Context, userUID string) error
	SetStripeCustomerID(ctx context.Context, userUID, customerID string) error

	GetPaymentMethod(ctx context.Context, userUID string, id int) (*models.PaymentMethod, error)
	GetDefaultPaymentMethod(ctx context.Context, userUID string) (*models.PaymentMethod, error)
	PromoteOldestPaymentMethod(ctx context.Context, userUID string) (*models.PaymentMethod, error)
	CreatePaymentMethod(ctx context.Context, method models.PaymentMethod, makeDefault bool) (int, error)
	ListPaymentMethods(ctx context.Context, userUID string) ([]*models.PaymentMethod, error)
	SetDefaultPaymentMethod(ctx context.Context, userUID string, id int) error
	RemovePaymentMethod(ctx context.Context, userUID string, id int) (int, error)
	CountPaymentMethods(ctx context.Context, userUID string) (int, error)

	GetConnectAccount(ctx context.Context, userUID string) (*models.ConnectAccount, error)
	CreateTransaction(ctx context.Context, tr models.Transaction) (int, error)
	ListTransactions(ctx context.Context, userUID string, limit, offset int) ([]*models.Transaction, error)
}

// ProviderClient определяет операции платежного провайдера, нужные сервису.
type ProviderClient interface {
	CreateCustomer(ctx context.Context, req stripeapi.CreateCustomerRequest) (*stripeapi.Customer, error)
	CreatePaymentIntent(ctx context.Context, req stripeapi.CreatePaymentIntentRequest) (*stripeapi.PaymentIntent, error)
	CreateSetupIntent(ctx context.Context, customer string, metadata map[string]string) (*stripeapi.SetupIntent, error)
	GetPaymentMethod(ctx context.Context, id string) (*stripeapi.PaymentMethod, error)
	DetachPaymentMethod(ctx context.Context, id string) (*stripeapi.PaymentMethod, error)
}

// Cache определяет операции кэша списков транзакций.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
}

const transactionsCacheTTL = 30 * time.Second

// Service реализует бизнес-логику платежей.
type Service struct {
	repo     Repository
	provider ProviderClient
	cache    Cache
	feeBps   int64
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, provider ProviderClient, cache Cache, feeBps int64, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		cache:    cache,
		feeBps:   feeBps,
		log:      log,
	}
}

// CreateIntentRequest параметры создания платежа покупателем.
type CreateIntentRequest struct {
	SellerUID       string
	Amount          int64
	Currency        string
	CheckoutType    string
	PaymentMethodID int // 0 если метод не указан явно
}

// CreateIntentResult результат создания платежа.
type CreateIntentResult struct {
	TransactionID  int    `json:"transaction_id"`
	IntentID       string `json:"intent_id"`
	ClientSecret   string `json:"client_secret,omitempty"`
	Status         string `json:"status"`
	RequiresAction bool   `json:"requires_action"`
}

// CreatePaymentIntent создает платеж покупателя продавцу по таблице решений:
//
//   - указан конкретный сохраненный метод — списание с него с немедленным
//     подтверждением;
//   - express и есть метод по умолчанию — списание с него;
//   - express, метода по умолчанию нет, но методы есть — самый ранний
//     становится методом по умолчанию и используется;
//   - express без сохраненных методов — возвращается client_secret
//     для ввода новой карты, списание не предпринимается;
//   - onetime — метод никогда не привязывается, всегда client_secret.
//
// Платеж оформляется как destination charge: сумма уходит продавцу,
// комиссия площадки удерживается с платежа.
func (s *Service) CreatePaymentIntent(ctx context.Context, buyerUID string, req CreateIntentRequest) (*CreateIntentResult, error) {
	const op = "services.payment.CreatePaymentIntent"
	log := s.log.With(slog.String("op", op), slog.String("buyer_uid", buyerUID))

	// Самопокупка отклоняется до любого обращения к провайдеру.
	if buyerUID == req.SellerUID {
		return nil, ErrSelfPurchase
	}

	account, err := s.repo.GetConnectAccount(ctx, req.SellerUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if account == nil {
		return nil, ErrSellerNotOnboarded
	}
	if !account.ChargesEnabled {
		return nil, ErrChargesDisabled
	}

	customerID, err := s.getOrCreateCustomer(ctx, buyerUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	method, err := s.resolvePaymentMethod(ctx, buyerUID, req)
	if err != nil {
		return nil, err
	}

	fee := money.PlatformFee(req.Amount, s.feeBps)

	intentReq := stripeapi.CreatePaymentIntentRequest{
		Amount:               req.Amount,
		Currency:             req.Currency,
		Customer:             customerID,
		Destination:          account.StripeAccountID,
		ApplicationFeeAmount: fee,
		Metadata: map[string]string{
			"buyer_uid":     buyerUID,
			"seller_uid":    req.SellerUID,
			"checkout_type": req.CheckoutType,
		},
	}
	if method != nil {
		intentReq.PaymentMethod = method.StripePaymentMethodID
		intentReq.Confirm = true
		intentReq.OffSession = true
	} else if req.CheckoutType == models.CheckoutTypeExpress {
		// Новая карта покупателя сохраняется для будущих express-покупок.
		intentReq.SetupFutureUsage = "off_session"
	}

	intent, err := s.provider.CreatePaymentIntent(ctx, intentReq)
	if err != nil {
		log.Error("provider rejected payment intent", slog.Any("err", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	status := statusFromIntent(intent.Status)
	trID, err := s.repo.CreateTransaction(ctx, models.Transaction{
		IntentID:       intent.ID,
		BuyerUID:       buyerUID,
		SellerUID:      req.SellerUID,
		Amount:         req.Amount,
		ApplicationFee: fee,
		Currency:       req.Currency,
		Status:         status,
		CheckoutType:   req.CheckoutType,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("created payment intent",
		slog.String("intent_id", intent.ID),
		slog.Int64("amount", req.Amount),
		slog.Int64("application_fee", fee),
		slog.String("status", status))

	return &CreateIntentResult{
		TransactionID:  trID,
		IntentID:       intent.ID,
		ClientSecret:   intent.ClientSecret,
		Status:         status,
		RequiresAction: intent.Status == stripeapi.IntentStatusRequiresAction,
	}, nil
}

// resolvePaymentMethod выбирает сохраненный метод для списания
// или возвращает nil, если карта должна быть введена заново.
func (s *Service) resolvePaymentMethod(ctx context.Context, buyerUID string, req CreateIntentRequest) (*models.PaymentMethod, error) {
	const op = "services.payment.resolvePaymentMethod"

	if req.PaymentMethodID != 0 {
		method, err := s.repo.GetPaymentMethod(ctx, buyerUID, req.PaymentMethodID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if method == nil {
			return nil, ErrPaymentMethodNotFound
		}
		return method, nil
	}

	switch req.CheckoutType {
	case models.CheckoutTypeExpress:
		method, err := s.repo.GetDefaultPaymentMethod(ctx, buyerUID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if method != nil {
			return method, nil
		}
		// Метода по умолчанию нет: самый ранний сохраненный становится им.
		method, err = s.repo.PromoteOldestPaymentMethod(ctx, buyerUID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return method, nil
	case models.CheckoutTypeOnetime:
		return nil, nil
	default:
		return nil, ErrUnknownCheckoutType
	}
}

// statusFromIntent переводит статус платежа у провайдера в статус транзакции.
func statusFromIntent(intentStatus string) string {
	switch intentStatus {
	case stripeapi.IntentStatusSucceeded:
		return models.TransactionStatusSucceeded
	case stripeapi.IntentStatusRequiresAction:
		return models.TransactionStatusRequiresAction
	case stripeapi.IntentStatusCanceled:
		return models.TransactionStatusCanceled
	default:
		return models.TransactionStatusPending
	}
}

// getOrCreateCustomer возвращает ID покупателя у провайдера,
// лениво создавая профиль и покупателя при первой оплате.
func (s *Service) getOrCreateCustomer(ctx context.Context, userUID string) (string, error) {
	const op = "services.payment.getOrCreateCustomer"

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

	s.log.Info("created provider customer",
		slog.String("user_uid", userUID), slog.String("customer_id", customer.ID))
	return customer.ID, nil
}

// CreateSetupIntent создает интент привязки платежного метода без списания.
func (s *Service) CreateSetupIntent(ctx context.Context, userUID string) (string, error) {
	const op = "services.payment.CreateSetupIntent"

	customerID, err := s.getOrCreateCustomer(ctx, userUID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	intent, err := s.provider.CreateSetupIntent(ctx, customerID, map[string]string{"user_uid": userUID})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return intent.ClientSecret, nil
}

// ListPaymentMethods возвращает сохраненные методы пользователя.
func (s *Service) ListPaymentMethods(ctx context.Context, userUID string) ([]*models.PaymentMethod, error) {
	return s.repo.ListPaymentMethods(ctx, userUID)
}

// SetDefaultPaymentMethod делает метод id методом по умолчанию.
func (s *Service) SetDefaultPaymentMethod(ctx context.Context, userUID string, id int) error {
	return s.repo.SetDefaultPaymentMethod(ctx, userUID, id)
}

// RemovePaymentMethod отвязывает метод у провайдера и удаляет его запись.
func (s *Service) RemovePaymentMethod(ctx context.Context, userUID string, id int) error {
	const op = "services.payment.RemovePaymentMethod"

	method, err := s.repo.GetPaymentMethod(ctx, userUID, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if method == nil {
		return ErrPaymentMethodNotFound
	}
	if _, err := s.provider.DetachPaymentMethod(ctx, method.StripePaymentMethodID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.repo.RemovePaymentMethod(ctx, userUID, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SavePaymentMethod сохраняет платежный метод, привязанный у провайдера.
// Первый сохраненный метод пользователя становится методом по умолчанию.
// Вызывается из обработки вебхуков, а не из обработчиков запросов.
func (s *Service) SavePaymentMethod(ctx context.Context, userUID, stripeMethodID string) (int, error) {
	const op = "services.payment.SavePaymentMethod"

	providerMethod, err := s.provider.GetPaymentMethod(ctx, stripeMethodID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	count, err := s.repo.CountPaymentMethods(ctx, userUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.repo.CreatePaymentMethod(ctx, models.PaymentMethod{
		UserUID:               userUID,
		StripePaymentMethodID: stripeMethodID,
		Brand:                 providerMethod.Card.Brand,
		Last4:                 providerMethod.Card.Last4,
	}, count == 0)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("saved payment method",
		slog.String("user_uid", userUID), slog.Int("id", id), slog.Bool("default", count == 0))
	return id, nil
}

// ListTransactions возвращает транзакции пользователя с пагинацией.
// Списки кэшируются с коротким TTL: статусы транзакций меняются
// вебхуками, поэтому свежесть в пределах TTL допустима.
func (s *Service) ListTransactions(ctx context.Context, userUID string, limit, offset int) ([]*models.Transaction, error) {
	const op = "services.payment.ListTransactions"
	log := s.log.With(slog.String("op", op), slog.String("user_uid", userUID))

	cacheKey := transactionsCacheKey(userUID, limit, offset)
	var cached []*models.Transaction
	found, err := s.cache.Get(cacheKey, &cached)
	if err != nil {
		log.Warn("failed to read transactions cache", sl.Err(err))
	}
	if found {
		return cached, nil
	}

	transactions, err := s.repo.ListTransactions(ctx, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(cacheKey, transactions, transactionsCacheTTL); err != nil {
		log.Warn("failed to write transactions cache", sl.Err(err))
	}
	return transactions, nil
}

func transactionsCacheKey(userUID string, limit, offset int) string {
	return fmt.Sprintf("transactions:%s:%d:%d", userUID, limit, offset)
}
