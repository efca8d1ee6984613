package models

import "time"

// Типы покупки тарифа площадки.
const (
	PlanTypeRecurring = "recurring"
	PlanTypeOnetime   = "onetime"
)

// Статусы покупки тарифа.
const (
	PlanStatusPending  = "pending"
	PlanStatusActive   = "active"
	PlanStatusPastDue  = "past_due"
	PlanStatusCanceled = "canceled"
	PlanStatusExpired  = "expired"
)

// PlanPurchase представляет покупку тарифа площадки пользователем:
// либо регулярная подписка у провайдера, либо разовый доступ
// с датой окончания ExpiresAt.
type PlanPurchase struct {
	ID                   int        `json:"id"`
	UserUID              string     `json:"user_uid"`
	StripeSubscriptionID string     `json:"stripe_subscription_id,omitempty"`
	PlanType             string     `json:"plan_type"`
	Status               string     `json:"status"`
	ExpiresAt            *time.Time `json:"expires_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// PurchaseInfo данные для письма пользователю об истечении разового доступа.
type PurchaseInfo struct {
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}
