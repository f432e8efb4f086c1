package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/dhanrekha/internal/models"
)

// CreateIncome сохраняет доход.
func (s *Storage) CreateIncome(ctx context.Context, in models.Income) (*models.Income, error) {
	const op = "storage.CreateIncome"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	in.ID = uuid.NewString()
	query := `INSERT INTO incomes (id, user_id, date, amount, source, month, year)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING created_at, updated_at`
	err := s.DB.QueryRowContext(ctx, query,
		in.ID, in.UserID, in.Date, in.Amount, nullString(in.Source), in.Month, in.Year).
		Scan(&in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &in, nil
}

// ListIncomes возвращает доходы пользователя за период, новые первыми.
func (s *Storage) ListIncomes(ctx context.Context, userID string, p Period) ([]models.Income, error) {
	const op = "storage.ListIncomes"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	where, args := periodFilter(userID, p)
	query := `SELECT id, user_id, date, amount, source, month, year, created_at, updated_at
			  FROM incomes WHERE ` + where + ` ORDER BY date DESC`
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := []models.Income{}
	for rows.Next() {
		var (
			in     models.Income
			source sql.NullString
		)
		if err := rows.Scan(&in.ID, &in.UserID, &in.Date, &in.Amount, &source,
			&in.Month, &in.Year, &in.CreatedAt, &in.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		in.Source = source.String
		in.Date = in.Date.UTC()
		result = append(result, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// SumIncomes возвращает сумму доходов пользователя за период.
func (s *Storage) SumIncomes(ctx context.Context, userID string, p Period) (float64, error) {
	const op = "storage.SumIncomes"
	total, err := s.sum(ctx, "incomes", userID, p)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, nil
}
