package models

import "time"

// ConnectAccount представляет аккаунт продавца у платежного провайдера.
// Флаги возможностей зеркалируются из провайдера вебхуком account.updated
// или периодическим опросом планировщика.
type ConnectAccount struct {
	UserUID          string    `json:"user_uid"`
	StripeAccountID  string    `json:"stripe_account_id"`
	ChargesEnabled   bool      `json:"charges_enabled"`
	PayoutsEnabled   bool      `json:"payouts_enabled"`
	DetailsSubmitted bool      `json:"details_submitted"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
