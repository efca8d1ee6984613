package stripeapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Типы вебхук-событий, обрабатываемые площадкой.
const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
	EventPaymentIntentCanceled  = "payment_intent.canceled"
	EventSetupIntentSucceeded   = "setup_intent.succeeded"
	EventSubscriptionUpdated    = "customer.subscription.updated"
	EventSubscriptionDeleted    = "customer.subscription.deleted"
	EventAccountUpdated         = "account.updated"
)

// Ошибки проверки подписи вебхука.
var (
	ErrInvalidSignature = errors.New("webhook signature does not match")
	ErrStaleTimestamp   = errors.New("webhook timestamp outside tolerance window")
)

// Event представляет вебхук-событие провайдера. Содержимое Data.Object
// разбирается получателем в зависимости от Type.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
	Created int64 `json:"created"`
}

// VerifySignature проверяет заголовок Stripe-Signature формата
// "t=<unix>,v1=<hex>": подпись HMAC-SHA256 строки "<t>.<тело>"
// секретом вебхука, сравнение за постоянное время, метка времени
// не старше tolerance.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration) error {
	const op = "stripeapi.VerifySignature"

	var timestamp int64
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("%s: parse timestamp: %w", op, err)
			}
			timestamp = parsed
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == 0 || len(signatures) == 0 {
		return ErrInvalidSignature
	}

	age := time.Since(time.Unix(timestamp, 0))
	if age > tolerance || age < -tolerance {
		return ErrStaleTimestamp
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(expected), []byte(signature)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// SignPayload строит заголовок Stripe-Signature для тела payload.
// Используется в тестах и при проверке интеграции.
func SignPayload(payload []byte, secret string, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return "t=" + timestamp + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}
