package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/marketplace-payments/internal/models"
)

// CreatePlanPurchase вставляет новую покупку тарифа и возвращает её ID.
func (s *Storage) CreatePlanPurchase(ctx context.Context, purchase models.PlanPurchase) (int, error) {
	const op = "storage.CreatePlanPurchase"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var subscriptionID sql.NullString
	if purchase.StripeSubscriptionID != "" {
		subscriptionID = sql.NullString{String: purchase.StripeSubscriptionID, Valid: true}
	}

	query := `INSERT INTO plan_purchases (user_uid, stripe_subscription_id, plan_type, status, expires_at)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		purchase.UserUID, subscriptionID, purchase.PlanType, purchase.Status,
		purchase.ExpiresAt).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetActivePlanPurchase возвращает действующую покупку тарифа пользователя:
// активную или ожидающую оплаты, у разового доступа — с непройденной датой
// окончания. Возвращает nil, если действующей покупки нет.
func (s *Storage) GetActivePlanPurchase(ctx context.Context, userUID string) (*models.PlanPurchase, error) {
	const op = "storage.GetActivePlanPurchase"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, COALESCE(stripe_subscription_id, ''), plan_type, status, expires_at, created_at, updated_at
			  FROM plan_purchases
			  WHERE user_uid = $1
			    AND status IN ($2, $3)
			    AND (expires_at IS NULL OR expires_at > now())
			  ORDER BY id DESC
			  LIMIT 1`
	row := s.DB.QueryRowContext(ctx, query, userUID,
		models.PlanStatusActive, models.PlanStatusPending)
	return scanPlanPurchase(row, op)
}

// GetPlanPurchaseBySubscriptionID возвращает покупку тарифа по ID подписки
// у провайдера или nil, если такой покупки нет.
func (s *Storage) GetPlanPurchaseBySubscriptionID(ctx context.Context, subscriptionID string) (*models.PlanPurchase, error) {
	const op = "storage.GetPlanPurchaseBySubscriptionID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, COALESCE(stripe_subscription_id, ''), plan_type, status, expires_at, created_at, updated_at
			  FROM plan_purchases
			  WHERE stripe_subscription_id = $1`
	row := s.DB.QueryRowContext(ctx, query, subscriptionID)
	return scanPlanPurchase(row, op)
}

func scanPlanPurchase(row *sql.Row, op string) (*models.PlanPurchase, error) {
	var item models.PlanPurchase
	var expiresAt sql.NullTime
	if err := row.Scan(&item.ID, &item.UserUID, &item.StripeSubscriptionID,
		&item.PlanType, &item.Status, &expiresAt, &item.CreatedAt, &item.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if expiresAt.Valid {
		item.ExpiresAt = &expiresAt.Time
	}
	return &item, nil
}

// UpdatePlanPurchaseStatus обновляет статус покупки по её ID
// и возвращает количество изменённых строк.
func (s *Storage) UpdatePlanPurchaseStatus(ctx context.Context, id int, status string) (int, error) {
	const op = "storage.UpdatePlanPurchaseStatus"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE plan_purchases SET status = $1, updated_at = now() WHERE id = $2`
	result, err := s.DB.ExecContext(ctx, query, status, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// UpdatePlanPurchaseStatusBySubscriptionID обновляет статус покупки
// по ID подписки у провайдера и возвращает количество изменённых строк.
func (s *Storage) UpdatePlanPurchaseStatusBySubscriptionID(ctx context.Context, subscriptionID, status string) (int, error) {
	const op = "storage.UpdatePlanPurchaseStatusBySubscriptionID"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE plan_purchases SET status = $1, updated_at = now() WHERE stripe_subscription_id = $2`
	result, err := s.DB.ExecContext(ctx, query, status, subscriptionID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ExpireOnetimePurchases переводит в статус expired разовые покупки
// с прошедшей датой окончания и возвращает количество изменённых строк.
func (s *Storage) ExpireOnetimePurchases(ctx context.Context, now time.Time) (int, error) {
	const op = "storage.ExpireOnetimePurchases"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE plan_purchases
			  SET status = $1, updated_at = now()
			  WHERE plan_type = $2 AND status = $3 AND expires_at <= $4`
	result, err := s.DB.ExecContext(ctx, query,
		models.PlanStatusExpired, models.PlanTypeOnetime, models.PlanStatusActive, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// FindLapsedGrants находит активные разовые покупки с прошедшей датой
// окончания вместе с почтой владельца. Вызывается перед переводом
// покупок в статус expired, чтобы уведомить владельцев.
func (s *Storage) FindLapsedGrants(ctx context.Context, now time.Time) ([]*models.PurchaseInfo, error) {
	const op = "storage.FindLapsedGrants"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT u.email, u.username, p.expires_at
			  FROM plan_purchases p
			  JOIN users u ON u.uid = p.user_uid
			  WHERE p.plan_type = $1 AND p.status = $2 AND p.expires_at <= $3`
	rows, err := s.DB.QueryContext(ctx, query,
		models.PlanTypeOnetime, models.PlanStatusActive, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var result []*models.PurchaseInfo
	for rows.Next() {
		var item models.PurchaseInfo
		if err := rows.Scan(&item.Email, &item.Username, &item.ExpiresAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	err = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FindGrantsExpiringTomorrow находит разовые покупки, истекающие в течение
// суток, вместе с почтой владельца для уведомления.
func (s *Storage) FindGrantsExpiringTomorrow(ctx context.Context) ([]*models.PurchaseInfo, error) {
	const op = "storage.FindGrantsExpiringTomorrow"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT u.email, u.username, p.expires_at
			  FROM plan_purchases p
			  JOIN users u ON u.uid = p.user_uid
			  WHERE p.plan_type = $1 AND p.status = $2
			    AND p.expires_at > now()
			    AND p.expires_at <= now() + interval '1 day'`
	rows, err := s.DB.QueryContext(ctx, query, models.PlanTypeOnetime, models.PlanStatusActive)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var result []*models.PurchaseInfo
	for rows.Next() {
		var item models.PurchaseInfo
		if err := rows.Scan(&item.Email, &item.Username, &item.ExpiresAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	err = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
