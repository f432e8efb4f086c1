// Package repository реализует хранилище данных трекера на PostgreSQL:
// пользователи, расходы, доходы, агрегаты и выполнение конвейеров ассистента.
// Все выборки по расходам и доходам ограничены идентификатором владельца.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	// ErrNotFound запись не найдена или принадлежит другому пользователю.
	ErrNotFound = errors.New("record not found")
	// ErrUserExists пользователь с таким email уже зарегистрирован.
	ErrUserExists = errors.New("user already exists")
)

const uniqueViolation = "23505"

// Storage инкапсулирует соединение с PostgreSQL.
type Storage struct {
	DB *sql.DB
	// AggregateLimit максимальное число строк, которое вернёт Aggregate.
	AggregateLimit int
}

// New открывает подключение к PostgreSQL и проверяет его.
func New(ctx context.Context, storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// Ping проверяет доступность базы данных.
func (s *Storage) Ping(ctx context.Context) error {
	const op = "storage.Ping"
	if err := s.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) Close() error {
	return s.DB.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
