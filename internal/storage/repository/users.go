package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/dhanrekha/internal/models"
)

const userColumns = `id, name, email, password_hash, reset_password_token,
	reset_password_expires, created_at, updated_at`

// CreateUser сохраняет нового пользователя и возвращает его с заполненными ID и датами.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	user.ID = uuid.NewString()
	query := `INSERT INTO users (id, name, email, password_hash)
			  VALUES ($1, $2, $3, $4)
			  RETURNING created_at, updated_at`
	err := s.DB.QueryRowContext(ctx, query, user.ID, user.Name, user.Email, user.PasswordHash).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserExists)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUser возвращает пользователя по ID.
func (s *Storage) GetUser(ctx context.Context, userID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByResetToken возвращает пользователя с действующим на момент now токеном сброса.
func (s *Storage) GetUserByResetToken(ctx context.Context, token string, now time.Time) (*models.User, error) {
	const op = "storage.GetUserByResetToken"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users
			  WHERE reset_password_token = $1 AND reset_password_expires > $2`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, token, now))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// SetResetToken сохраняет токен сброса пароля и срок его действия.
func (s *Storage) SetResetToken(ctx context.Context, userID, token string, expires time.Time) error {
	const op = "storage.SetResetToken"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET reset_password_token = $2, reset_password_expires = $3, updated_at = now()
			  WHERE id = $1`
	return s.execOne(ctx, op, query, userID, token, expires)
}

// ClearResetToken удаляет токен сброса пароля.
func (s *Storage) ClearResetToken(ctx context.Context, userID string) error {
	const op = "storage.ClearResetToken"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET reset_password_token = NULL, reset_password_expires = NULL, updated_at = now()
			  WHERE id = $1`
	return s.execOne(ctx, op, query, userID)
}

// UpdatePassword меняет хэш пароля и сбрасывает токен восстановления.
func (s *Storage) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	const op = "storage.UpdatePassword"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET password_hash = $2, reset_password_token = NULL,
			      reset_password_expires = NULL, updated_at = now()
			  WHERE id = $1`
	return s.execOne(ctx, op, query, userID, passwordHash)
}

func (s *Storage) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var (
		u       models.User
		token   sql.NullString
		expires sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &token, &expires,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if token.Valid {
		u.ResetPasswordToken = &token.String
	}
	if expires.Valid {
		u.ResetPasswordExpires = &expires.Time
	}
	return &u, nil
}
