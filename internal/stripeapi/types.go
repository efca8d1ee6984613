// Package stripeapi реализует клиент REST API Stripe.
//
// Клиент покрывает только операции, нужные маркетплейсу: покупатели,
// платежи с переводом продавцу, сохранение платежных методов, подписки
// и Connect-аккаунты продавцов. Ответы описаны собственными структурами,
// суммы везде в минимальных единицах валюты.
package stripeapi

// Статусы платежного интента у провайдера.
const (
	IntentStatusRequiresPaymentMethod = "requires_payment_method"
	IntentStatusRequiresConfirmation  = "requires_confirmation"
	IntentStatusRequiresAction        = "requires_action"
	IntentStatusProcessing            = "processing"
	IntentStatusSucceeded             = "succeeded"
	IntentStatusCanceled              = "canceled"
)

// Customer представляет покупателя у провайдера.
type Customer struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Created int64  `json:"created"`
}

// CreateCustomerRequest параметры создания покупателя.
type CreateCustomerRequest struct {
	Email    string
	Metadata map[string]string
}

// PaymentIntent представляет платеж у провайдера.
type PaymentIntent struct {
	ID                   string            `json:"id"`
	Status               string            `json:"status"`
	ClientSecret         string            `json:"client_secret"`
	Amount               int64             `json:"amount"`
	Currency             string            `json:"currency"`
	Customer             string            `json:"customer"`
	PaymentMethod        string            `json:"payment_method"`
	SetupFutureUsage     string            `json:"setup_future_usage"`
	ApplicationFeeAmount int64             `json:"application_fee_amount"`
	Metadata             map[string]string `json:"metadata"`
	Created              int64             `json:"created"`
}

// CreatePaymentIntentRequest параметры создания платежа.
// Destination и ApplicationFeeAmount заполняются для destination charge:
// платеж уходит продавцу за вычетом комиссии площадки.
type CreatePaymentIntentRequest struct {
	Amount               int64
	Currency             string
	Customer             string
	PaymentMethod        string // ID сохраненного метода, пустая строка если карта вводится заново
	Confirm              bool
	OffSession           bool
	SetupFutureUsage     string // "off_session" чтобы сохранить метод после оплаты
	Destination          string // Connect-аккаунт продавца
	ApplicationFeeAmount int64
	Metadata             map[string]string
}

// SetupIntent представляет привязку платежного метода без списания.
type SetupIntent struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	ClientSecret  string            `json:"client_secret"`
	Customer      string            `json:"customer"`
	PaymentMethod string            `json:"payment_method"`
	Metadata      map[string]string `json:"metadata"`
}

// PaymentMethodCard данные карты сохраненного метода.
type PaymentMethodCard struct {
	Brand string `json:"brand"`
	Last4 string `json:"last4"`
}

// PaymentMethod представляет платежный метод у провайдера.
type PaymentMethod struct {
	ID       string            `json:"id"`
	Customer string            `json:"customer"`
	Card     PaymentMethodCard `json:"card"`
}

// Invoice счет подписки, PaymentIntent приходит развернутым
// через expand[]=latest_invoice.payment_intent.
type Invoice struct {
	ID            string         `json:"id"`
	PaymentIntent *PaymentIntent `json:"payment_intent"`
}

// Subscription представляет регулярную подписку у провайдера.
type Subscription struct {
	ID               string   `json:"id"`
	Status           string   `json:"status"`
	Customer         string   `json:"customer"`
	CurrentPeriodEnd int64    `json:"current_period_end"`
	LatestInvoice    *Invoice `json:"latest_invoice"`
}

// CreateSubscriptionRequest параметры создания подписки.
type CreateSubscriptionRequest struct {
	Customer string
	PriceID  string
	Metadata map[string]string
}

// Account представляет Connect-аккаунт продавца.
type Account struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	DetailsSubmitted bool   `json:"details_submitted"`
}

// AccountLink одноразовая ссылка для прохождения онбординга продавцом.
type AccountLink struct {
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expires_at"`
}

// apiError тело ошибки Stripe API.
type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
