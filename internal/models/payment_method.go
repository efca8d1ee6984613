package models

import "time"

// PaymentMethod представляет сохраненный платежный инструмент пользователя.
// У пользователя может быть не более одного метода с IsDefault = true,
// это поддерживается на уровне хранилища одной транзакцией.
type PaymentMethod struct {
	ID                    int       `json:"id"`
	UserUID               string    `json:"user_uid"`
	StripePaymentMethodID string    `json:"stripe_payment_method_id"`
	Brand                 string    `json:"brand"`
	Last4                 string    `json:"last4"`
	IsDefault             bool      `json:"is_default"`
	CreatedAt             time.Time `json:"created_at"`
}
