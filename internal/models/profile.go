package models

import "time"

// Profile хранит привязку пользователя к покупателю у платежного провайдера.
// Запись создается лениво при первой попытке оплаты, поэтому
// StripeCustomerID может быть пустым.
type Profile struct {
	UserUID          string    // Идентификатор пользователя
	StripeCustomerID string    // ID покупателя у провайдера, пустая строка если еще не создан
	CreatedAt        time.Time // Дата создания профиля
}
