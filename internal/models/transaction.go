package models

import "time"

// Статусы транзакции, зеркалируемые из статусов платежа у провайдера.
const (
	TransactionStatusPending        = "pending"
	TransactionStatusRequiresAction = "requires_action"
	TransactionStatusSucceeded      = "succeeded"
	TransactionStatusFailed         = "failed"
	TransactionStatusCanceled       = "canceled"
)

// Типы оформления покупки.
const (
	CheckoutTypeExpress = "express"
	CheckoutTypeOnetime = "onetime"
)

// Transaction представляет одну попытку оплаты покупки у продавца.
// Суммы хранятся в минимальных единицах валюты (копейки, центы).
type Transaction struct {
	ID             int       `json:"id"`
	IntentID       string    `json:"intent_id"`
	BuyerUID       string    `json:"buyer_uid"`
	SellerUID      string    `json:"seller_uid"`
	Amount         int64     `json:"amount"`
	ApplicationFee int64     `json:"application_fee"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	CheckoutType   string    `json:"checkout_type"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
