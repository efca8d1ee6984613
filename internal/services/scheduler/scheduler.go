// Package services реализует периодические задачи площадки:
// истечение разовых доступов, уведомления об их окончании
// и опрос флагов возможностей Connect-аккаунтов продавцов.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/marketplace-payments/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/marketplace-payments/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-payments/internal/models"
	"github.com/magabrotheeeer/marketplace-payments/internal/stripeapi"
)

// PlanRepository определяет методы хранилища для работы с покупками тарифа.
type PlanRepository interface {
	FindLapsedGrants(ctx context.Context, now time.Time) ([]*models.PurchaseInfo, error)
	ExpireOnetimePurchases(ctx context.Context, now time.Time) (int, error)
	FindGrantsExpiringTomorrow(ctx context.Context) ([]*models.PurchaseInfo, error)
	ListConnectAccounts(ctx context.Context) ([]*models.ConnectAccount, error)
}

// ProviderClient определяет операции платежного провайдера для опроса аккаунтов.
type ProviderClient interface {
	GetAccount(ctx context.Context, id string) (*stripeapi.Account, error)
}

// AccountMirror зеркалирует флаги возможностей Connect-аккаунта.
type AccountMirror interface {
	MirrorAccountFlags(ctx context.Context, account *stripeapi.Account) error
}

type SchedulerService struct {
	repo     PlanRepository
	provider ProviderClient
	mirror   AccountMirror
	log      *slog.Logger
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(repo PlanRepository, provider ProviderClient,
	mirror AccountMirror, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		repo:     repo,
		provider: provider,
		mirror:   mirror,
		log:      log,
	}
}

// ExpireOnetimeGrants раз в час переводит просроченные разовые доступы
// в статус expired, уведомляя владельцев через очередь grant_expired.
func (s *SchedulerService) ExpireOnetimeGrants(ctx context.Context, channel *amqp.Channel) {
	s.runExpireOnetimeGrants(ctx, channel)

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runExpireOnetimeGrants(ctx, channel)
		}
	}
}

func (s *SchedulerService) runExpireOnetimeGrants(ctx context.Context, channel *amqp.Channel) {
	s.log.Info("starting service to expire lapsed onetime grants")
	now := time.Now()

	lapsed, err := s.repo.FindLapsedGrants(ctx, now)
	if err != nil {
		s.log.Error("failed to find lapsed grants", sl.Err(err))
		return
	}
	for _, purchaseInfo := range lapsed {
		err = rabbitmq.PublishMessage(channel, "notifications", "grant_expired", purchaseInfo)
		if err != nil {
			s.log.Error("failed to publish message", sl.Err(err))
		}
	}

	expired, err := s.repo.ExpireOnetimePurchases(ctx, now)
	if err != nil {
		s.log.Error("failed to expire grants", sl.Err(err))
		return
	}
	if expired == 0 {
		s.log.Info("no lapsed grants found")
		return
	}
	s.log.Info("expired lapsed grants", "count", expired)
}

// NotifyExpiringGrants дважды в сутки находит разовые доступы,
// истекающие в течение суток, и отправляет уведомления владельцам
// через очередь grant_expiring.
func (s *SchedulerService) NotifyExpiringGrants(ctx context.Context, channel *amqp.Channel) {
	s.runNotifyExpiringGrants(ctx, channel)

	ticker := time.NewTicker(12 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runNotifyExpiringGrants(ctx, channel)
		}
	}
}

func (s *SchedulerService) runNotifyExpiringGrants(ctx context.Context, channel *amqp.Channel) {
	s.log.Info("starting service to find grants expiring tomorrow")
	purchases, err := s.repo.FindGrantsExpiringTomorrow(ctx)
	if err != nil {
		s.log.Error("failed to find expiring grants", sl.Err(err))
		return
	}
	if len(purchases) == 0 {
		s.log.Info("no expiring grants found")
		return
	}
	s.log.Info("found expiring grants", "count", len(purchases))
	for _, purchaseInfo := range purchases {
		err = rabbitmq.PublishMessage(channel, "notifications", "grant_expiring", purchaseInfo)
		if err != nil {
			s.log.Error("failed to publish message", sl.Err(err))
		}
	}
}

// PollConnectAccounts раз в шесть часов сверяет флаги возможностей
// всех Connect-аккаунтов с провайдером. Подстраховка на случай
// потерянных событий account.updated.
func (s *SchedulerService) PollConnectAccounts(ctx context.Context) {
	s.runPollConnectAccounts(ctx)

	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPollConnectAccounts(ctx)
		}
	}
}

func (s *SchedulerService) runPollConnectAccounts(ctx context.Context) {
	s.log.Info("starting service to poll connect account capabilities")
	accounts, err := s.repo.ListConnectAccounts(ctx)
	if err != nil {
		s.log.Error("failed to list connect accounts", sl.Err(err))
		return
	}
	for _, account := range accounts {
		remote, err := s.provider.GetAccount(ctx, account.StripeAccountID)
		if err != nil {
			s.log.Error("failed to fetch account",
				slog.String("account_id", account.StripeAccountID), sl.Err(err))
			continue
		}
		if remote.ChargesEnabled == account.ChargesEnabled &&
			remote.PayoutsEnabled == account.PayoutsEnabled &&
			remote.DetailsSubmitted == account.DetailsSubmitted {
			continue
		}
		if err := s.mirror.MirrorAccountFlags(ctx, remote); err != nil {
			s.log.Error("failed to mirror account flags",
				slog.String("account_id", account.StripeAccountID), sl.Err(err))
		}
	}
	s.log.Info("finished polling connect accounts", "count", len(accounts))
}
