package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/marketplace-payments/internal/models"
)

// CreateConnectAccount сохраняет привязку продавца к Connect-аккаунту провайдера.
func (s *Storage) CreateConnectAccount(ctx context.Context, account models.ConnectAccount) error {
	const op = "storage.CreateConnectAccount"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO connect_accounts (user_uid, stripe_account_id, charges_enabled, payouts_enabled, details_submitted)
			  VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.DB.ExecContext(ctx, query,
		account.UserUID, account.StripeAccountID, account.ChargesEnabled,
		account.PayoutsEnabled, account.DetailsSubmitted); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetConnectAccount возвращает Connect-аккаунт продавца
// или nil, если продавец еще не проходил онбординг.
func (s *Storage) GetConnectAccount(ctx context.Context, userUID string) (*models.ConnectAccount, error) {
	const op = "storage.GetConnectAccount"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_uid, stripe_account_id, charges_enabled, payouts_enabled, details_submitted, created_at, updated_at
			  FROM connect_accounts
			  WHERE user_uid = $1`
	row := s.DB.QueryRowContext(ctx, query, userUID)
	return scanConnectAccount(row, op)
}

// GetConnectAccountByStripeID возвращает Connect-аккаунт по его ID у провайдера
// или nil, если привязки нет.
func (s *Storage) GetConnectAccountByStripeID(ctx context.Context, accountID string) (*models.ConnectAccount, error) {
	const op = "storage.GetConnectAccountByStripeID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_uid, stripe_account_id, charges_enabled, payouts_enabled, details_submitted, created_at, updated_at
			  FROM connect_accounts
			  WHERE stripe_account_id = $1`
	row := s.DB.QueryRowContext(ctx, query, accountID)
	return scanConnectAccount(row, op)
}

func scanConnectAccount(row *sql.Row, op string) (*models.ConnectAccount, error) {
	var item models.ConnectAccount
	if err := row.Scan(&item.UserUID, &item.StripeAccountID, &item.ChargesEnabled,
		&item.PayoutsEnabled, &item.DetailsSubmitted, &item.CreatedAt, &item.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &item, nil
}

// UpdateConnectAccountFlags зеркалирует флаги возможностей аккаунта
// из провайдера и возвращает количество изменённых строк.
func (s *Storage) UpdateConnectAccountFlags(ctx context.Context, accountID string, chargesEnabled, payoutsEnabled, detailsSubmitted bool) (int, error) {
	const op = "storage.UpdateConnectAccountFlags"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE connect_accounts
			  SET charges_enabled = $1, payouts_enabled = $2, details_submitted = $3, updated_at = now()
			  WHERE stripe_account_id = $4`
	result, err := s.DB.ExecContext(ctx, query,
		chargesEnabled, payoutsEnabled, detailsSubmitted, accountID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ListConnectAccounts возвращает все Connect-аккаунты для периодического
// опроса флагов возможностей планировщиком.
func (s *Storage) ListConnectAccounts(ctx context.Context) ([]*models.ConnectAccount, error) {
	const op = "storage.ListConnectAccounts"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_uid, stripe_account_id, charges_enabled, payouts_enabled, details_submitted, created_at, updated_at
			  FROM connect_accounts
			  ORDER BY created_at`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var result []*models.ConnectAccount
	for rows.Next() {
		var item models.ConnectAccount
		if err := rows.Scan(&item.UserUID, &item.StripeAccountID, &item.ChargesEnabled,
			&item.PayoutsEnabled, &item.DetailsSubmitted, &item.CreatedAt, &item.UpdatedAt); err != nil {
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
