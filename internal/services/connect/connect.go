// Package connect реализует онбординг продавцов: создание
// Connect-аккаунта у провайдера, выдачу ссылки для прохождения
// онбординга и зеркалирование флагов возможностей аккаунта.
package connect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/marketplace-payments/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-payments/internal/models"
	"github.com/magabrotheeeer/marketplace-payments/internal/stripeapi"
)

// ErrNotOnboarded возвращается при запросе статуса продавца без аккаунта.
var ErrNotOnboarded = errors.New("seller has no payout account")

const statusCacheTTL = 5 * time.Minute

// Repository определяет методы хранилища, нужные сервису онбординга.
type Repository interface {
	GetConnectAccount(ctx context.Context, userUID string) (*models.ConnectAccount, error)
	GetConnectAccountByStripeID(ctx context.Context, accountID string) (*models.ConnectAccount, error)
	CreateConnectAccount(ctx context.Context, account models.ConnectAccount) error
	UpdateConnectAccountFlags(ctx context.Context, accountID string, chargesEnabled, payoutsEnabled, detailsSubmitted bool) (int, error)
}

// ProviderClient определяет операции платежного провайдера, нужные сервису.
type ProviderClient interface {
	CreateAccount(ctx context.Context, email string, metadata map[string]string) (*stripeapi.Account, error)
	GetAccount(ctx context.Context, id string) (*stripeapi.Account, error)
	CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (*stripeapi.AccountLink, error)
}

// Cache определяет операции кэша статусов аккаунтов.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service реализует бизнес-логику онбординга продавцов.
type Service struct {
	repo       Repository
	provider   ProviderClient
	cache      Cache
	returnURL  string
	refreshURL string
	log        *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, provider ProviderClient, cache Cache,
	returnURL, refreshURL string, log *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		provider:   provider,
		cache:      cache,
		returnURL:  returnURL,
		refreshURL: refreshURL,
		log:        log,
	}
}

// Onboard возвращает одноразовую ссылку для прохождения онбординга.
// Connect-аккаунт создается при первом обращении, повторные обращения
// выдают новую ссылку на уже существующий аккаунт.
func (s *Service) Onboard(ctx context.Context, userUID, email string) (string, error) {
	const op = "services.connect.Onboard"
	log := s.log.With(slog.String("op", op), slog.String("user_uid", userUID))

	account, err := s.repo.GetConnectAccount(ctx, userUID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if account == nil {
		created, err := s.provider.CreateAccount(ctx, email, map[string]string{"user_uid": userUID})
		if err != nil {
			log.Error("provider rejected account creation", sl.Err(err))
			return "", fmt.Errorf("%s: %w", op, err)
		}
		account = &models.ConnectAccount{
			UserUID:         userUID,
			StripeAccountID: created.ID,
		}
		if err := s.repo.CreateConnectAccount(ctx, *account); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		log.Info("created connect account", slog.String("account_id", created.ID))
	}

	link, err := s.provider.CreateAccountLink(ctx, account.StripeAccountID, s.refreshURL, s.returnURL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return link.URL, nil
}

// Status возвращает состояние аккаунта продавца. Свежие флаги
// запрашиваются у провайдера, зеркалируются в хранилище и кэшируются.
func (s *Service) Status(ctx context.Context, userUID string) (*models.ConnectAccount, error) {
	const op = "services.connect.Status"
	log := s.log.With(slog.String("op", op), slog.String("user_uid", userUID))

	cacheKey := statusCacheKey(userUID)
	var cached models.ConnectAccount
	found, err := s.cache.Get(cacheKey, &cached)
	if err != nil {
		log.Warn("failed to read status cache", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	account, err := s.repo.GetConnectAccount(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if account == nil {
		return nil, ErrNotOnboarded
	}

	remote, err := s.provider.GetAccount(ctx, account.StripeAccountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.repo.UpdateConnectAccountFlags(ctx, account.StripeAccountID,
		remote.ChargesEnabled, remote.PayoutsEnabled, remote.DetailsSubmitted); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	account.ChargesEnabled = remote.ChargesEnabled
	account.PayoutsEnabled = remote.PayoutsEnabled
	account.DetailsSubmitted = remote.DetailsSubmitted

	if err := s.cache.Set(cacheKey, account, statusCacheTTL); err != nil {
		log.Warn("failed to write status cache", sl.Err(err))
	}
	return account, nil
}

// MirrorAccountFlags зеркалирует флаги возможностей аккаунта из события
// провайдера и сбрасывает кэш статуса. Вызывается из обработки вебхуков
// и периодического опроса планировщика.
func (s *Service) MirrorAccountFlags(ctx context.Context, account *stripeapi.Account) error {
	const op = "services.connect.MirrorAccountFlags"

	stored, err := s.repo.GetConnectAccountByStripeID(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if stored == nil {
		// Аккаунт создан не через площадку, событие игнорируется.
		return nil
	}
	if _, err := s.repo.UpdateConnectAccountFlags(ctx, account.ID,
		account.ChargesEnabled, account.PayoutsEnabled, account.DetailsSubmitted); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Invalidate(statusCacheKey(stored.UserUID)); err != nil {
		s.log.Warn("failed to invalidate status cache", sl.Err(err))
	}

	s.log.Info("mirrored connect account flags",
		slog.String("account_id", account.ID),
		slog.Bool("charges_enabled", account.ChargesEnabled),
		slog.Bool("payouts_enabled", account.PayoutsEnabled))
	return nil
}

func statusCacheKey(userUID string) string {
	return "connect_status:" + userUID
}
