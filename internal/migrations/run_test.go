package migrations

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func getTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`, name).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func TestRunMigrations(t *testing.T) {
	db := getTestDB(t)

	require.NoError(t, Run(db))

	for _, table := range []string{"users", "expenses", "incomes"} {
		require.True(t, tableExists(t, db, table), "table %q should exist", table)
	}

	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE schemaname = 'public'
			AND tablename = 'expenses'
			AND indexname = 'idx_expenses_user_month'
		)
	`).Scan(&exists)
	require.NoError(t, err)
	require.True(t, exists, "index should exist")
}

func TestMigrationIdempotency(t *testing.T) {
	db := getTestDB(t)

	require.NoError(t, Run(db))
	require.NoError(t, Run(db))
}

func TestMonthYearConstraint(t *testing.T) {
	db := getTestDB(t)
	require.NoError(t, Run(db))

	_, err := db.Exec(`INSERT INTO users (id, name, email, password_hash)
		VALUES ('11111111-1111-1111-1111-111111111111', 'Asha', 'a@example.com', 'x')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO expenses (id, user_id, date, amount, category, month, year)
		VALUES ('22222222-2222-2222-2222-222222222222', '11111111-1111-1111-1111-111111111111',
		'2024-12-15T10:00:00Z', 10, 'Food', 11, 2024)`)
	require.Error(t, err, "month must match the date")

	_, err = db.Exec(`INSERT INTO expenses (id, user_id, date, amount, category, month, year)
		VALUES ('22222222-2222-2222-2222-222222222222', '11111111-1111-1111-1111-111111111111',
		'2024-12-15T10:00:00Z', 10, 'Food', 12, 2024)`)
	require.NoError(t, err)
}
