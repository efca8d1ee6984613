package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/marketplace-payments/internal/models"
)

// CreateTransaction вставляет новую транзакцию и возвращает её ID.
func (s *Storage) CreateTransaction(ctx context.Context, tr models.Transaction) (int, error) {
	const op = "storage.CreateTransaction"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO transactions (intent_id, buyer_uid, seller_uid, amount,
			      application_fee, currency, status, checkout_type)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		tr.IntentID, tr.BuyerUID, tr.SellerUID, tr.Amount, tr.ApplicationFee,
		tr.Currency, tr.Status, tr.CheckoutType).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// UpdateTransactionStatus обновляет статус транзакции по ID платежа
// у провайдера и возвращает количество изменённых строк.
func (s *Storage) UpdateTransactionStatus(ctx context.Context, intentID, status string) (int, error) {
	const op = "storage.UpdateTransactionStatus"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE transactions
			  SET status = $1, updated_at = now()
			  WHERE intent_id = $2`
	result, err := s.DB.ExecContext(ctx, query, status, intentID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// GetTransactionByIntentID возвращает транзакцию по ID платежа у провайдера
// или nil, если такой транзакции нет.
func (s *Storage) GetTransactionByIntentID(ctx context.Context, intentID string) (*models.Transaction, error) {
	const op = "storage.GetTransactionByIntentID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, intent_id, buyer_uid, seller_uid, amount, application_fee,
			      currency, status, checkout_type, created_at, updated_at
			  FROM transactions
			  WHERE intent_id = $1`
	var item models.Transaction
	row := s.DB.QueryRowContext(ctx, query, intentID)
	if err := row.Scan(&item.ID, &item.IntentID, &item.BuyerUID, &item.SellerUID,
		&item.Amount, &item.ApplicationFee, &item.Currency, &item.Status,
		&item.CheckoutType, &item.CreatedAt, &item.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &item, nil
}

// ListTransactions возвращает транзакции пользователя (как покупателя) с пагинацией.
func (s *Storage) ListTransactions(ctx context.Context, userUID string, limit, offset int) ([]*models.Transaction, error) {
	const op = "storage.ListTransactions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, intent_id, buyer_uid, seller_uid, amount, application_fee,
			      currency, status, checkout_type, created_at, updated_at
			  FROM transactions
			  WHERE buyer_uid = $1
			  ORDER BY id DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var result []*models.Transaction
	for rows.Next() {
		var item models.Transaction
		if err := rows.Scan(&item.ID, &item.IntentID, &item.BuyerUID, &item.SellerUID,
			&item.Amount, &item.ApplicationFee, &item.Currency, &item.Status,
			&item.CheckoutType, &item.CreatedAt, &item.UpdatedAt); err != nil {
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
