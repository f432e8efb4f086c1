// Package services содержит бизнес-логику учёта расходов: создание, выборки,
// сводки по категориям и месяцам с кешированием месячной сводки.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/dhanrekha/internal/cache"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/money"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/month"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/sl"
	"github.com/magabrotheeeer/dhanrekha/internal/models"
	"github.com/magabrotheeeer/dhanrekha/internal/storage/repository"
)

var (
	ErrInvalidAmount   = errors.New("amount must be greater than zero")
	ErrInvalidCategory = errors.New("unknown category")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidPeriod   = errors.New("invalid month or year")
	ErrEmptyBatch      = errors.New("no expenses provided")
	ErrExpenseNotFound = errors.New("expense not found")
)

const (
	recentWindow = 7 * 24 * time.Hour
	recentLimit  = 3
)

// ExpenseRepository описывает операции хранилища, нужные сервису расходов.
type ExpenseRepository interface {
	CreateExpense(ctx context.Context, e models.Expense) (*models.Expense, error)
	CreateExpenses(ctx context.Context, expenses []models.Expense) (int, error)
	ListExpenses(ctx context.Context, userID string, rng models.DateRange) ([]models.Expense, error)
	RecentExpenses(ctx context.Context, userID string, since time.Time, limit int) ([]models.Expense, error)
	ExpensesByPeriod(ctx context.Context, userID string, p repository.Period) ([]models.Expense, error)
	CategoryTotals(ctx context.Context, userID string, rng models.DateRange) ([]models.CategoryTotal, error)
	CategoryBreakdown(ctx context.Context, userID string, p repository.Period) ([]models.CategoryBreakdown, error)
	SumExpenses(ctx context.Context, userID string, p repository.Period) (float64, error)
	SumIncomes(ctx context.Context, userID string, p repository.Period) (float64, error)
	DeleteExpense(ctx context.Context, userID, id string) (*models.Expense, error)
}

// Cache кеш месячных сводок.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	InvalidatePattern(ctx context.Context, pattern string) error
}

// ExpenseService реализует бизнес-логику работы с расходами.
type ExpenseService struct {
	repo       ExpenseRepository
	cache      Cache
	summaryTTL time.Duration
	log        *slog.Logger
	now        func() time.Time
}

// NewExpenseService создаёт ExpenseService.
func NewExpenseService(repo ExpenseRepository, cache Cache, summaryTTL time.Duration, log *slog.Logger) *ExpenseService {
	return &ExpenseService{
		repo:       repo,
		cache:      cache,
		summaryTTL: summaryTTL,
		log:        log,
		now:        time.Now,
	}
}

// BuildExpense проверяет запрос и строит расход с производными month/year.
func BuildExpense(userID string, req models.ExpenseRequest) (models.Expense, error) {
	if req.Amount <= 0 {
		return models.Expense{}, ErrInvalidAmount
	}
	if !models.IsValidCategory(req.Category) {
		return models.Expense{}, fmt.Errorf("%w: %q", ErrInvalidCategory, req.Category)
	}
	date, err := month.ParseDate(req.Date)
	if err != nil {
		return models.Expense{}, fmt.Errorf("%w: %q", ErrInvalidDate, req.Date)
	}
	m, y := month.Derive(date)
	return models.Expense{
		UserID:      userID,
		Date:        date,
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		Month:       m,
		Year:        y,
	}, nil
}

// Create сохраняет расход пользователя.
func (s *ExpenseService) Create(ctx context.Context, userID string, req models.ExpenseRequest) (*models.Expense, error) {
	const op = "services.expense.Create"
	e, err := BuildExpense(userID, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	created, err := s.repo.CreateExpense(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, userID)
	s.log.Info("created expense", slog.String("id", created.ID), slog.String("category", created.Category))
	return created, nil
}

// CreateBulk сохраняет пачку расходов целиком или не сохраняет ничего.
func (s *ExpenseService) CreateBulk(ctx context.Context, userID string, reqs []models.ExpenseRequest) (int, error) {
	const op = "services.expense.CreateBulk"
	if len(reqs) == 0 {
		return 0, fmt.Errorf("%s: %w", op, ErrEmptyBatch)
	}
	batch := make([]models.Expense, 0, len(reqs))
	for i, req := range reqs {
		e, err := BuildExpense(userID, req)
		if err != nil {
			return 0, fmt.Errorf("%s: item %d: %w", op, i, err)
		}
		batch = append(batch, e)
	}
	n, err := s.repo.CreateExpenses(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, userID)
	s.log.Info("created expenses in bulk", slog.Int("count", n))
	return n, nil
}

// ParseRange разбирает необязательные границы периода. Конец периода включает весь день.
func ParseRange(startDate, endDate string) (models.DateRange, error) {
	var rng models.DateRange
	if startDate != "" {
		from, err := month.ParseDate(startDate)
		if err != nil {
			return rng, fmt.Errorf("%w: startDate %q", ErrInvalidDate, startDate)
		}
		rng.From = &from
	}
	if endDate != "" {
		to, err := month.ParseDate(endDate)
		if err != nil {
			return rng, fmt.Errorf("%w: endDate %q", ErrInvalidDate, endDate)
		}
		to = month.EndOfDay(to)
		rng.To = &to
	}
	return rng, nil
}

// List возвращает расходы за необязательный период, новые первыми.
func (s *ExpenseService) List(ctx context.Context, userID, startDate, endDate string) ([]models.Expense, error) {
	const op = "services.expense.List"
	rng, err := ParseRange(startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result, err := s.repo.ListExpenses(ctx, userID, rng)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// Weekly без границ периода возвращает три последних расхода за семь дней,
// с границами работает как List.
func (s *ExpenseService) Weekly(ctx context.Context, userID, startDate, endDate string) ([]models.Expense, error) {
	const op = "services.expense.Weekly"
	if startDate != "" || endDate != "" {
		return s.List(ctx, userID, startDate, endDate)
	}
	result, err := s.repo.RecentExpenses(ctx, userID, s.now().Add(-recentWindow), recentLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CategorySummary возвращает суммы по категориям, округлённые до копеек.
func (s *ExpenseService) CategorySummary(ctx context.Context, userID, startDate, endDate string) ([]models.CategoryTotal, error) {
	const op = "services.expense.CategorySummary"
	rng, err := ParseRange(startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	totals, err := s.repo.CategoryTotals(ctx, userID, rng)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for i := range totals {
		totals[i].Total = money.Round2(totals[i].Total)
	}
	return totals, nil
}

// Balance возвращает доходы, расходы и остаток за всё время.
func (s *ExpenseService) Balance(ctx context.Context, userID string) (*models.Balance, error) {
	const op = "services.expense.Balance"
	income, err := s.repo.SumIncomes(ctx, userID, repository.Period{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	expense, err := s.repo.SumExpenses(ctx, userID, repository.Period{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.Balance{
		TotalIncome:      money.Round2(income),
		TotalExpense:     money.Round2(expense),
		RemainingBalance: money.Round2(income - expense),
	}, nil
}

func validPeriod(m, y int) bool {
	return m >= 1 && m <= 12 && y > 0
}

// MonthlySummary возвращает сводку за месяц. Результат кешируется до следующего
// изменения данных пользователя.
func (s *ExpenseService) MonthlySummary(ctx context.Context, userID string, m, y int) (*models.MonthlySummary, error) {
	const op = "services.expense.MonthlySummary"
	if !validPeriod(m, y) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidPeriod)
	}

	key := cache.SummaryKey(userID, y, m)
	var cached models.MonthlySummary
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("failed to read summary from cache", slog.String("key", key), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	period := repository.Period{Month: m, Year: y}
	var (
		income, expense float64
		categories      []models.CategoryBreakdown
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		income, err = s.repo.SumIncomes(gctx, userID, period)
		return err
	})
	g.Go(func() error {
		var err error
		expense, err = s.repo.SumExpenses(gctx, userID, period)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.repo.CategoryBreakdown(gctx, userID, period)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i := range categories {
		categories[i].Total = money.Round2(categories[i].Total)
	}
	if categories == nil {
		categories = []models.CategoryBreakdown{}
	}
	summary := &models.MonthlySummary{
		Month:        m,
		Year:         y,
		TotalIncome:  money.Round2(income),
		TotalExpense: money.Round2(expense),
		Balance:      money.Round2(income - expense),
		Categories:   categories,
	}

	if err := s.cache.Set(ctx, key, summary, s.summaryTTL); err != nil {
		s.log.Warn("failed to cache summary", slog.String("key", key), sl.Err(err))
	}
	return summary, nil
}

// ByMonth возвращает расходы за месяц и год, новые первыми.
func (s *ExpenseService) ByMonth(ctx context.Context, userID string, m, y int) ([]models.Expense, error) {
	const op = "services.expense.ByMonth"
	if !validPeriod(m, y) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidPeriod)
	}
	result, err := s.repo.ExpensesByPeriod(ctx, userID, repository.Period{Month: m, Year: y})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// Delete удаляет расход пользователя. Чужой расход считается ненайденным.
func (s *ExpenseService) Delete(ctx context.Context, userID, id string) (*models.Expense, error) {
	const op = "services.expense.Delete"
	deleted, err := s.repo.DeleteExpense(ctx, userID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrExpenseNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, userID)
	return deleted, nil
}

func (s *ExpenseService) invalidate(ctx context.Context, userID string) {
	pattern := cache.SummaryPattern(userID)
	if err := s.cache.InvalidatePattern(ctx, pattern); err != nil {
		s.log.Warn("failed to invalidate summary cache", slog.String("pattern", pattern), sl.Err(err))
	}
}
