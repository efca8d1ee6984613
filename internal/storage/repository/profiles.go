package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/marketplace-payments/internal/models"
)

// GetProfile возвращает профиль пользователя или nil, если профиля еще нет.
func (s *Storage) GetProfile(ctx context.Context, userUID string) (*models.Profile, error) {
	const op = "storage.GetProfile"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_uid, COALESCE(stripe_customer_id, ''), created_at
			  FROM profiles
			  WHERE user_uid = $1`
	p := &models.Profile{}
	row := s.DB.QueryRowContext(ctx, query, userUID)
	if err := row.Scan(&p.UserUID, &p.StripeCustomerID, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// CreateProfile создает пустой профиль пользователя. Профиль создается
// лениво при первой попытке оплаты, поэтому конфликт по ключу игнорируется.
func (s *Storage) CreateProfile(ctx context.Context, userUID string) error {
	const op = "storage.CreateProfile"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO profiles (user_uid)
			  VALUES ($1)
			  ON CONFLICT (user_uid) DO NOTHING`
	if _, err := s.DB.ExecContext(ctx, query, userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetStripeCustomerID сохраняет ID покупателя у провайдера в профиле пользователя.
func (s *Storage) SetStripeCustomerID(ctx context.Context, userUID, customerID string) error {
	const op = "storage.SetStripeCustomerID"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE profiles SET stripe_customer_id = $1 WHERE user_uid = $2`
	result, err := s.DB.ExecContext(ctx, query, customerID, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: profile %s not found", op, userUID)
	}
	return nil
}
