package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/marketplace-payments/internal/models"
)

// CreatePaymentMethod сохраняет платежный метод пользователя и возвращает его ID.
// Если makeDefault = true, прежний метод по умолчанию снимается в той же транзакции.
func (s *Storage) CreatePaymentMethod(ctx context.Context, method models.PaymentMethod, makeDefault bool) (int, error) {
	const op = "storage.CreatePaymentMethod"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if makeDefault {
		if _, err := tx.ExecContext(ctx,
			`UPDATE payment_methods SET is_default = false WHERE user_uid = $1`,
			method.UserUID); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
	}

	var newID int
	query := `INSERT INTO payment_methods (user_uid, stripe_payment_method_id, brand, last4, is_default)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (stripe_payment_method_id) DO UPDATE
			      SET brand = EXCLUDED.brand, last4 = EXCLUDED.last4
			  RETURNING id`
	if err := tx.QueryRowContext(ctx, query,
		method.UserUID, method.StripePaymentMethodID, method.Brand, method.Last4,
		makeDefault).Scan(&newID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ListPaymentMethods возвращает платежные методы пользователя в порядке создания.
func (s *Storage) ListPaymentMethods(ctx context.Context, userUID string) ([]*models.PaymentMethod, error) {
	const op = "storage.ListPaymentMethods"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, stripe_payment_method_id, brand, last4, is_default, created_at
			  FROM payment_methods
			  WHERE user_uid = $1
			  ORDER BY created_at, id`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var result []*models.PaymentMethod
	for rows.Next() {
		var item models.PaymentMethod
		if err := rows.Scan(&item.ID, &item.UserUID, &item.StripePaymentMethodID,
			&item.Brand, &item.Last4, &item.IsDefault, &item.CreatedAt); err != nil {
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

// GetPaymentMethod возвращает платежный метод пользователя по ID
// или nil, если метод не найден либо принадлежит другому пользователю.
func (s *Storage) GetPaymentMethod(ctx context.Context, userUID string, id int) (*models.PaymentMethod, error) {
	const op = "storage.GetPaymentMethod"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, stripe_payment_method_id, brand, last4, is_default, created_at
			  FROM payment_methods
			  WHERE user_uid = $1 AND id = $2`
	var item models.PaymentMethod
	row := s.DB.QueryRowContext(ctx, query, userUID, id)
	if err := row.Scan(&item.ID, &item.UserUID, &item.StripePaymentMethodID,
		&item.Brand, &item.Last4, &item.IsDefault, &item.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &item, nil
}

// GetDefaultPaymentMethod возвращает метод по умолчанию или nil, если его нет.
func (s *Storage) GetDefaultPaymentMethod(ctx context.Context, userUID string) (*models.PaymentMethod, error) {
	const op = "storage.GetDefaultPaymentMethod"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, stripe_payment_method_id, brand, last4, is_default, created_at
			  FROM payment_methods
			  WHERE user_uid = $1 AND is_default = true`
	var item models.PaymentMethod
	row := s.DB.QueryRowContext(ctx, query, userUID)
	if err := row.Scan(&item.ID, &item.UserUID, &item.StripePaymentMethodID,
		&item.Brand, &item.Last4, &item.IsDefault, &item.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &item, nil
}

// SetDefaultPaymentMethod делает метод id методом по умолчанию.
// Снятие старого и установка нового идут в одной транзакции, чтобы
// конкурентные запросы не оставили у пользователя два метода по умолчанию.
func (s *Storage) SetDefaultPaymentMethod(ctx context.Context, userUID string, id int) error {
	const op = "storage.SetDefaultPaymentMethod"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE payment_methods SET is_default = false WHERE user_uid = $1`,
		userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE payment_methods SET is_default = true WHERE user_uid = $1 AND id = $2`,
		userUID, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: payment method %d not found for user %s", op, id, userUID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// PromoteOldestPaymentMethod делает самый ранний по дате создания метод
// пользователя методом по умолчанию и возвращает его. Вся операция идет
// одной транзакцией с блокировкой строки, поэтому повторный вызов
// не поменяет выбор и не создаст второй метод по умолчанию.
func (s *Storage) PromoteOldestPaymentMethod(ctx context.Context, userUID string) (*models.PaymentMethod, error) {
	const op = "storage.PromoteOldestPaymentMethod"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT id, user_uid, stripe_payment_method_id, brand, last4, is_default, created_at
			  FROM payment_methods
			  WHERE user_uid = $1
			  ORDER BY created_at, id
			  LIMIT 1
			  FOR UPDATE`
	var item models.PaymentMethod
	row := tx.QueryRowContext(ctx, query, userUID)
	if err := row.Scan(&item.ID, &item.UserUID, &item.StripePaymentMethodID,
		&item.Brand, &item.Last4, &item.IsDefault, &item.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !item.IsDefault {
		if _, err := tx.ExecContext(ctx,
			`UPDATE payment_methods SET is_default = false WHERE user_uid = $1`,
			userUID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE payment_methods SET is_default = true WHERE id = $1`,
			item.ID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		item.IsDefault = true
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &item, nil
}

// RemovePaymentMethod удаляет метод пользователя и возвращает количество удаленных строк.
func (s *Storage) RemovePaymentMethod(ctx context.Context, userUID string, id int) (int, error) {
	const op = "storage.RemovePaymentMethod"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM payment_methods WHERE user_uid = $1 AND id = $2`
	result, err := s.DB.ExecContext(ctx, query, userUID, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// CountPaymentMethods возвращает количество сохраненных методов пользователя.
func (s *Storage) CountPaymentMethods(ctx context.Context, userUID string) (int, error) {
	const op = "storage.CountPaymentMethods"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var count int
	query := `SELECT COUNT(*) FROM payment_methods WHERE user_uid = $1`
	if err := s.DB.QueryRowContext(ctx, query, userUID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}
