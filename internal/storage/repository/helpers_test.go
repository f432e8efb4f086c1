package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/dhanrekha/internal/lib/month"
	"github.com/magabrotheeeer/dhanrekha/internal/migrations"
	"github.com/magabrotheeeer/dhanrekha/internal/models"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		_ = pgContainer.Terminate(ctx)
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(ctx, connStr)
	require.NoError(t, err, "failed to create storage")
	t.Cleanup(func() {
		_ = storage.Close()
	})

	require.NoError(t, migrations.Run(storage.DB), "failed to apply migrations")
	return storage
}

// TestDataFactory создаёт тестовые данные напрямую через хранилище.
type TestDataFactory struct {
	storage *Storage
}

func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создаёт пользователя и возвращает его ID.
func (f *TestDataFactory) CreateUser(t *testing.T, name, email string) string {
	t.Helper()
	u, err := f.storage.CreateUser(context.Background(), models.User{
		Name:         name,
		Email:        email,
		PasswordHash: "hashedpassword",
	})
	require.NoError(t, err)
	return u.ID
}

// CreateExpense создаёт расход с производными month/year.
func (f *TestDataFactory) CreateExpense(t *testing.T, userID string, date time.Time, amount float64, category string) *models.Expense {
	t.Helper()
	m, y := month.Derive(date)
	e, err := f.storage.CreateExpense(context.Background(), models.Expense{
		UserID:   userID,
		Date:     date,
		Amount:   amount,
		Category: category,
		Month:    m,
		Year:     y,
	})
	require.NoError(t, err)
	return e
}

// CreateIncome создаёт доход с производными month/year.
func (f *TestDataFactory) CreateIncome(t *testing.T, userID string, date time.Time, amount float64, source string) *models.Income {
	t.Helper()
	m, y := month.Derive(date)
	in, err := f.storage.CreateIncome(context.Background(), models.Income{
		UserID: userID,
		Date:   date,
		Amount: amount,
		Source: source,
		Month:  m,
		Year:   y,
	})
	require.NoError(t, err)
	return in
}

func uniqueEmail() string {
	return uuid.NewString() + "@example.com"
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}
