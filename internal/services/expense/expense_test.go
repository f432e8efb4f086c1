package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/dhanrekha/internal/cache"
	"github.com/magabrotheeeer/dhanrekha/internal/models"
	"github.com/magabrotheeeer/dhanrekha/internal/storage/repository"
)

// Мок для ExpenseRepository
type ExpenseRepoMock struct {
	mock.Mock
}

func (m *ExpenseRepoMock) CreateExpense(ctx context.Context, e models.Expense) (*models.Expense, error) {
	args := m.Called(ctx, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Expense), args.Error(1)
}

func (m *ExpenseRepoMock) CreateExpenses(ctx context.Context, expenses []models.Expense) (int, error) {
	args := m.Called(ctx, expenses)
	return args.Int(0), args.Error(1)
}

func (m *ExpenseRepoMock) ListExpenses(ctx context.Context, userID string, rng models.DateRange) ([]models.Expense, error) {
	args := m.Called(ctx, userID, rng)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Expense), args.Error(1)
}

func (m *ExpenseRepoMock) RecentExpenses(ctx context.Context, userID string, since time.Time, limit int) ([]models.Expense, error) {
	args := m.Called(ctx, userID, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Expense), args.Error(1)
}

func (m *ExpenseRepoMock) ExpensesByPeriod(ctx context.Context, userID string, p repository.Period) ([]models.Expense, error) {
	args := m.Called(ctx, userID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Expense), args.Error(1)
}

func (m *ExpenseRepoMock) CategoryTotals(ctx context.Context, userID string, rng models.DateRange) ([]models.CategoryTotal, error) {
	args := m.Called(ctx, userID, rng)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CategoryTotal), args.Error(1)
}

func (m *ExpenseRepoMock) CategoryBreakdown(ctx context.Context, userID string, p repository.Period) ([]models.CategoryBreakdown, error) {
	args := m.Called(ctx, userID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CategoryBreakdown), args.Error(1)
}

func (m *ExpenseRepoMock) SumExpenses(ctx context.Context, userID string, p repository.Period) (float64, error) {
	args := m.Called(ctx, userID, p)
	return args.Get(0).(float64), args.Error(1)
}

func (m *ExpenseRepoMock) SumIncomes(ctx context.Context, userID string, p repository.Period) (float64, error) {
	args := m.Called(ctx, userID, p)
	return args.Get(0).(float64), args.Error(1)
}

func (m *ExpenseRepoMock) DeleteExpense(ctx context.Context, userID, id string) (*models.Expense, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Expense), args.Error(1)
}

const userID = "7f1d2c4e-8a3b-4c5d-9e6f-0a1b2c3d4e5f"

var fixedNow = time.Date(2024, time.December, 10, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*ExpenseService, *ExpenseRepoMock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := &cache.Cache{Db: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = c.Close() })

	repo := new(ExpenseRepoMock)
	svc := NewExpenseService(repo, c, 10*time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, mr
}

func TestBuildExpense(t *testing.T) {
	tests := []struct {
		name    string
		req     models.ExpenseRequest
		wantErr error
		month   int
		year    int
	}{
		{
			name:  "valid",
			req:   models.ExpenseRequest{Date: "2024-12-31", Amount: 120, Category: "Food"},
			month: 12,
			year:  2024,
		},
		{
			name:  "timestamp normalized to utc",
			req:   models.ExpenseRequest{Date: "2025-01-01T03:00:00+05:30", Amount: 10, Category: "Rent"},
			month: 12,
			year:  2024,
		},
		{
			name:    "zero amount",
			req:     models.ExpenseRequest{Date: "2024-12-01", Amount: 0, Category: "Food"},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			req:     models.ExpenseRequest{Date: "2024-12-01", Amount: -5, Category: "Food"},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "unknown category",
			req:     models.ExpenseRequest{Date: "2024-12-01", Amount: 5, Category: "Travel"},
			wantErr: ErrInvalidCategory,
		},
		{
			name:    "bad date",
			req:     models.ExpenseRequest{Date: "31/12/2024", Amount: 5, Category: "Food"},
			wantErr: ErrInvalidDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := BuildExpense(userID, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, userID, e.UserID)
			assert.Equal(t, tt.month, e.Month)
			assert.Equal(t, tt.year, e.Year)
		})
	}
}

func TestExpenseService_Create(t *testing.T) {
	svc, repo, mr := newTestService(t)
	ctx := context.Background()
	mr.Set(cache.SummaryKey(userID, 2024, 12), "{}")

	repo.On("CreateExpense", ctx, mock.MatchedBy(func(e models.Expense) bool {
		return e.UserID == userID && e.Amount == 250 && e.Month == 12 && e.Year == 2024
	})).Return(&models.Expense{ID: "e1", Category: "Food"}, nil)

	created, err := svc.Create(ctx, userID, models.ExpenseRequest{Date: "2024-12-05", Amount: 250, Category: "Food"})
	require.NoError(t, err)
	assert.Equal(t, "e1", created.ID)
	assert.False(t, mr.Exists(cache.SummaryKey(userID, 2024, 12)), "summary cache must be invalidated")
	repo.AssertExpectations(t)
}

func TestExpenseService_CreateBulk(t *testing.T) {
	t.Run("all valid", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		ctx := context.Background()
		repo.On("CreateExpenses", ctx, mock.MatchedBy(func(b []models.Expense) bool { return len(b) == 2 })).Return(2, nil)

		n, err := svc.CreateBulk(ctx, userID, []models.ExpenseRequest{
			{Date: "2024-12-01", Amount: 10, Category: "Food"},
			{Date: "2024-11-30", Amount: 20, Category: "Transport"},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		repo.AssertExpectations(t)
	})

	t.Run("one invalid item rejects the batch", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		_, err := svc.CreateBulk(context.Background(), userID, []models.ExpenseRequest{
			{Date: "2024-12-01", Amount: 10, Category: "Food"},
			{Date: "2024-12-01", Amount: 10, Category: "Nope"},
		})
		assert.ErrorIs(t, err, ErrInvalidCategory)
		assert.Contains(t, err.Error(), "item 1")
		repo.AssertNotCalled(t, "CreateExpenses", mock.Anything, mock.Anything)
	})

	t.Run("empty", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.CreateBulk(context.Background(), userID, nil)
		assert.ErrorIs(t, err, ErrEmptyBatch)
	})
}

func TestParseRange(t *testing.T) {
	rng, err := ParseRange("2024-12-01", "2024-12-31")
	require.NoError(t, err)
	require.NotNil(t, rng.From)
	require.NotNil(t, rng.To)
	assert.True(t, rng.From.Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 23, rng.To.Hour())
	assert.Equal(t, 31, rng.To.Day())

	rng, err = ParseRange("", "")
	require.NoError(t, err)
	assert.Nil(t, rng.From)
	assert.Nil(t, rng.To)

	_, err = ParseRange("yesterday", "")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestExpenseService_Weekly(t *testing.T) {
	t.Run("defaults to three newest in last seven days", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		ctx := context.Background()
		want := []models.Expense{{ID: "a"}, {ID: "b"}}
		repo.On("RecentExpenses", ctx, userID, fixedNow.Add(-7*24*time.Hour), 3).Return(want, nil)

		got, err := svc.Weekly(ctx, userID, "", "")
		require.NoError(t, err)
		assert.Equal(t, want, got)
		repo.AssertExpectations(t)
	})

	t.Run("range returns every match", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		ctx := context.Background()
		repo.On("ListExpenses", ctx, userID, mock.MatchedBy(func(r models.DateRange) bool {
			return r.From != nil && r.To != nil
		})).Return([]models.Expense{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}, nil)

		got, err := svc.Weekly(ctx, userID, "2024-12-01", "2024-12-07")
		require.NoError(t, err)
		assert.Len(t, got, 4)
		repo.AssertNotCalled(t, "RecentExpenses", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestExpenseService_CategorySummary(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	repo.On("CategoryTotals", ctx, userID, models.DateRange{}).Return([]models.CategoryTotal{
		{Category: "Food", Total: 10.005},
		{Category: "Rent", Total: 0.1 + 0.2},
	}, nil)

	got, err := svc.CategorySummary(ctx, userID, "", "")
	require.NoError(t, err)
	assert.Equal(t, 10.01, got[0].Total)
	assert.Equal(t, 0.3, got[1].Total)
}

func TestExpenseService_Balance(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	repo.On("SumIncomes", ctx, userID, repository.Period{}).Return(1000.456, nil)
	repo.On("SumExpenses", ctx, userID, repository.Period{}).Return(200.1, nil)

	got, err := svc.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, &models.Balance{TotalIncome: 1000.46, TotalExpense: 200.1, RemainingBalance: 800.36}, got)
}

func TestExpenseService_MonthlySummary(t *testing.T) {
	t.Run("computes and caches", func(t *testing.T) {
		svc, repo, mr := newTestService(t)
		ctx := context.Background()
		period := repository.Period{Month: 12, Year: 2024}
		repo.On("SumIncomes", mock.Anything, userID, period).Return(5000.0, nil).Once()
		repo.On("SumExpenses", mock.Anything, userID, period).Return(1234.567, nil).Once()
		repo.On("CategoryBreakdown", mock.Anything, userID, period).Return([]models.CategoryBreakdown{
			{Category: "Rent", Total: 1000, Count: 1},
			{Category: "Food", Total: 234.567, Count: 3},
		}, nil).Once()

		got, err := svc.MonthlySummary(ctx, userID, 12, 2024)
		require.NoError(t, err)
		assert.Equal(t, 5000.0, got.TotalIncome)
		assert.Equal(t, 1234.57, got.TotalExpense)
		assert.Equal(t, 3765.43, got.Balance)
		require.Len(t, got.Categories, 2)
		assert.Equal(t, 234.57, got.Categories[1].Total)
		assert.True(t, mr.Exists(cache.SummaryKey(userID, 2024, 12)))

		again, err := svc.MonthlySummary(ctx, userID, 12, 2024)
		require.NoError(t, err)
		assert.Equal(t, got, again)
		repo.AssertExpectations(t)
	})

	t.Run("empty month has empty categories", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		period := repository.Period{Month: 2, Year: 2023}
		repo.On("SumIncomes", mock.Anything, userID, period).Return(0.0, nil)
		repo.On("SumExpenses", mock.Anything, userID, period).Return(0.0, nil)
		repo.On("CategoryBreakdown", mock.Anything, userID, period).Return(nil, nil)

		got, err := svc.MonthlySummary(context.Background(), userID, 2, 2023)
		require.NoError(t, err)
		assert.NotNil(t, got.Categories)
		assert.Empty(t, got.Categories)
	})

	t.Run("repository failure", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		period := repository.Period{Month: 1, Year: 2024}
		dbErr := errors.New("db down")
		repo.On("SumIncomes", mock.Anything, userID, period).Return(0.0, dbErr)
		repo.On("SumExpenses", mock.Anything, userID, period).Return(0.0, nil).Maybe()
		repo.On("CategoryBreakdown", mock.Anything, userID, period).Return(nil, nil).Maybe()

		_, err := svc.MonthlySummary(context.Background(), userID, 1, 2024)
		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("invalid period", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.MonthlySummary(context.Background(), userID, 13, 2024)
		assert.ErrorIs(t, err, ErrInvalidPeriod)
	})
}

func TestExpenseService_ByMonth(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	repo.On("ExpensesByPeriod", ctx, userID, repository.Period{Month: 3, Year: 2024}).Return([]models.Expense{{ID: "x"}}, nil)

	got, err := svc.ByMonth(ctx, userID, 3, 2024)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = svc.ByMonth(ctx, userID, 0, 2024)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestExpenseService_Delete(t *testing.T) {
	t.Run("deletes and invalidates cache", func(t *testing.T) {
		svc, repo, mr := newTestService(t)
		ctx := context.Background()
		mr.Set(cache.SummaryKey(userID, 2024, 11), "{}")
		repo.On("DeleteExpense", ctx, userID, "e1").Return(&models.Expense{ID: "e1"}, nil)

		deleted, err := svc.Delete(ctx, userID, "e1")
		require.NoError(t, err)
		assert.Equal(t, "e1", deleted.ID)
		assert.False(t, mr.Exists(cache.SummaryKey(userID, 2024, 11)))
	})

	t.Run("not found or not owned", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		ctx := context.Background()
		repo.On("DeleteExpense", ctx, userID, "e2").Return(nil, repository.ErrNotFound)

		_, err := svc.Delete(ctx, userID, "e2")
		assert.ErrorIs(t, err, ErrExpenseNotFound)
	})
}
