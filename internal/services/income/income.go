// Package services содержит бизнес-логику учёта доходов.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/dhanrekha/internal/cache"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/month"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/sl"
	"github.com/magabrotheeeer/dhanrekha/internal/models"
	"github.com/magabrotheeeer/dhanrekha/internal/storage/repository"
)

var (
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidPeriod = errors.New("invalid month or year")
)

// IncomeRepository описывает операции хранилища для доходов.
type IncomeRepository interface {
	CreateIncome(ctx context.Context, in models.Income) (*models.Income, error)
	ListIncomes(ctx context.Context, userID string, p repository.Period) ([]models.Income, error)
}

// Invalidator сбрасывает кешированные сводки.
type Invalidator interface {
	InvalidatePattern(ctx context.Context, pattern string) error
}

type IncomeService struct {
	repo  IncomeRepository
	cache Invalidator
	log   *slog.Logger
}

func NewIncomeService(repo IncomeRepository, cache Invalidator, log *slog.Logger) *IncomeService {
	return &IncomeService{repo: repo, cache: cache, log: log}
}

// Create сохраняет доход. Месяц и год выводятся из даты.
func (s *IncomeService) Create(ctx context.Context, userID string, req models.IncomeRequest) (*models.Income, error) {
	const op = "services.income.Create"
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}
	date, err := month.ParseDate(req.Date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrInvalidDate, req.Date)
	}
	m, y := month.Derive(date)
	created, err := s.repo.CreateIncome(ctx, models.Income{
		UserID: userID,
		Date:   date,
		Amount: req.Amount,
		Source: req.Source,
		Month:  m,
		Year:   y,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pattern := cache.SummaryPattern(userID)
	if err := s.cache.InvalidatePattern(ctx, pattern); err != nil {
		s.log.Warn("failed to invalidate summary cache", slog.String("pattern", pattern), sl.Err(err))
	}
	return created, nil
}

// List возвращает доходы пользователя. Фильтр применяется, только если заданы и месяц, и год.
func (s *IncomeService) List(ctx context.Context, userID string, m, y int) ([]models.Income, error) {
	const op = "services.income.List"
	var p repository.Period
	if m != 0 && y != 0 {
		if m < 1 || m > 12 || y < 0 {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidPeriod)
		}
		p = repository.Period{Month: m, Year: y}
	}
	result, err := s.repo.ListIncomes(ctx, userID, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
