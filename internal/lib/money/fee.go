// Package money содержит расчет комиссии площадки.
//
// Все суммы считаются в минимальных единицах валюты (копейки, центы),
// комиссия задается в базисных пунктах (1 bps = 0.01%). Расчет ведется
// только в целых числах, без плавающей точки, чтобы результат не зависел
// от валюты и платформы.
package money

// BpsDenominator количество базисных пунктов в 100%.
const BpsDenominator = 10000

// PlatformFee возвращает комиссию площадки с суммы amount при ставке feeBps.
// Округление — арифметическое вверх от половины (1.5 -> 2).
// Отрицательные входные значения дают нулевую комиссию.
func PlatformFee(amount, feeBps int64) int64 {
	if amount <= 0 || feeBps <= 0 {
		return 0
	}
	return (amount*feeBps + BpsDenominator/2) / BpsDenominator
}

// SellerNet возвращает сумму, уходящую продавцу после вычета комиссии.
func SellerNet(amount, feeBps int64) int64 {
	return amount - PlatformFee(amount, feeBps)
}
