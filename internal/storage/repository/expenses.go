package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/dhanrekha/internal/models"
)

// Period ограничение по производным полям month/year. Нулевое значение поля означает
// отсутствие ограничения.
type Period struct {
	Month int
	Year  int
}

const expenseColumns = `id, user_id, date, amount, category, description, month, year,
	created_at, updated_at`

// CreateExpense сохраняет расход. Month и Year должны быть уже выведены из Date.
func (s *Storage) CreateExpense(ctx context.Context, e models.Expense) (*models.Expense, error) {
	const op = "storage.CreateExpense"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	e.ID = uuid.NewString()
	query := `INSERT INTO expenses (id, user_id, date, amount, category, description, month, year)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING created_at, updated_at`
	err := s.DB.QueryRowContext(ctx, query,
		e.ID, e.UserID, e.Date, e.Amount, e.Category, nullString(e.Description), e.Month, e.Year).
		Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &e, nil
}

// CreateExpenses сохраняет пачку расходов в одной транзакции и возвращает их количество.
func (s *Storage) CreateExpenses(ctx context.Context, expenses []models.Expense) (int, error) {
	const op = "storage.CreateExpenses"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO expenses
		(id, user_id, date, amount, category, description, month, year)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, e := range expenses {
		if _, err := stmt.ExecContext(ctx,
			uuid.NewString(), e.UserID, e.Date, e.Amount, e.Category, nullString(e.Description),
			e.Month, e.Year); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return len(expenses), nil
}

// ListExpenses возвращает расходы пользователя за период, новые первыми.
func (s *Storage) ListExpenses(ctx context.Context, userID string, rng models.DateRange) ([]models.Expense, error) {
	const op = "storage.ListExpenses"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	where, args := rangeFilter(userID, rng)
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE ` + where + ` ORDER BY date DESC`
	result, err := s.queryExpenses(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// RecentExpenses возвращает не более limit последних расходов начиная с since.
func (s *Storage) RecentExpenses(ctx context.Context, userID string, since time.Time, limit int) ([]models.Expense, error) {
	const op = "storage.RecentExpenses"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses
			  WHERE user_id = $1 AND date >= $2
			  ORDER BY date DESC
			  LIMIT $3`
	result, err := s.queryExpenses(ctx, query, userID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ExpensesByPeriod возвращает расходы пользователя за месяц и год, новые первыми.
func (s *Storage) ExpensesByPeriod(ctx context.Context, userID string, p Period) ([]models.Expense, error) {
	const op = "storage.ExpensesByPeriod"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	where, args := periodFilter(userID, p)
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE ` + where + ` ORDER BY date DESC`
	result, err := s.queryExpenses(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CategoryTotals возвращает суммы расходов по категориям за период.
func (s *Storage) CategoryTotals(ctx context.Context, userID string, rng models.DateRange) ([]models.CategoryTotal, error) {
	const op = "storage.CategoryTotals"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	where, args := rangeFilter(userID, rng)
	query := `SELECT category, SUM(amount) FROM expenses WHERE ` + where + `
			  GROUP BY category ORDER BY category`
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := []models.CategoryTotal{}
	for rows.Next() {
		var c models.CategoryTotal
		if err := rows.Scan(&c.Category, &c.Total); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CategoryBreakdown возвращает сумму и число расходов по категориям за период,
// по убыванию суммы.
func (s *Storage) CategoryBreakdown(ctx context.Context, userID string, p Period) ([]models.CategoryBreakdown, error) {
	const op = "storage.CategoryBreakdown"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	where, args := periodFilter(userID, p)
	query := `SELECT category, SUM(amount) AS total, COUNT(*) FROM expenses WHERE ` + where + `
			  GROUP BY category ORDER BY total DESC, category`
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := []models.CategoryBreakdown{}
	for rows.Next() {
		var c models.CategoryBreakdown
		if err := rows.Scan(&c.Category, &c.Total, &c.Count); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// SumExpenses возвращает сумму расходов пользователя за период.
func (s *Storage) SumExpenses(ctx context.Context, userID string, p Period) (float64, error) {
	const op = "storage.SumExpenses"
	total, err := s.sum(ctx, "expenses", userID, p)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, nil
}

// DeleteExpense удаляет расход пользователя и возвращает удалённую запись.
// Чужой или несуществующий расход даёт ErrNotFound.
func (s *Storage) DeleteExpense(ctx context.Context, userID, id string) (*models.Expense, error) {
	const op = "storage.DeleteExpense"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM expenses WHERE id = $1 AND user_id = $2 RETURNING ` + expenseColumns
	e, err := scanExpense(s.DB.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

func (s *Storage) queryExpenses(ctx context.Context, query string, args ...any) ([]models.Expense, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	result := []models.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanExpense(row scanner) (*models.Expense, error) {
	var (
		e           models.Expense
		description sql.NullString
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Date, &e.Amount, &e.Category, &description,
		&e.Month, &e.Year, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Description = description.String
	e.Date = e.Date.UTC()
	return &e, nil
}

func (s *Storage) sum(ctx context.Context, table, userID string, p Period) (float64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	where, args := periodFilter(userID, p)
	query := `SELECT COALESCE(SUM(amount), 0) FROM ` + table + ` WHERE ` + where
	var total float64
	if err := s.DB.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func rangeFilter(userID string, rng models.DateRange) (string, []any) {
	conds := []string{"user_id = $1"}
	args := []any{userID}
	if rng.From != nil {
		args = append(args, *rng.From)
		conds = append(conds, fmt.Sprintf("date >= $%d", len(args)))
	}
	if rng.To != nil {
		args = append(args, *rng.To)
		conds = append(conds, fmt.Sprintf("date <= $%d", len(args)))
	}
	return strings.Join(conds, " AND "), args
}

func periodFilter(userID string, p Period) (string, []any) {
	conds := []string{"user_id = $1"}
	args := []any{userID}
	if p.Month != 0 {
		args = append(args, p.Month)
		conds = append(conds, fmt.Sprintf("month = $%d", len(args)))
	}
	if p.Year != 0 {
		args = append(args, p.Year)
		conds = append(conds, fmt.Sprintf("year = $%d", len(args)))
	}
	return strings.Join(conds, " AND "), args
}
