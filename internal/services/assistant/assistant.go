// Package services реализует чат-ассистента: разбор намерения, детерминированный
// расчёт баланса и аналитику через два LLM-делегата.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/dhanrekha/internal/lib/month"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/sl"
	"github.com/magabrotheeeer/dhanrekha/internal/llm"
	"github.com/magabrotheeeer/dhanrekha/internal/metrics"
	"github.com/magabrotheeeer/dhanrekha/internal/models"
	"github.com/magabrotheeeer/dhanrekha/internal/pipeline"
	"github.com/magabrotheeeer/dhanrekha/internal/storage/repository"
)

// FallbackReply ответ, если аналитический запрос не удалось выполнить.
const FallbackReply = "I couldn't process that complex search. Try asking 'Total food expenses in December'."

var (
	ErrEmptyQuery    = errors.New("query required")
	ErrSummaryFailed = errors.New("summary generation failed")
)

// UserProvider возвращает пользователя по id.
type UserProvider interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

// Ledger суммы доходов и расходов за период.
type Ledger interface {
	SumIncomes(ctx context.Context, userID string, p repository.Period) (float64, error)
	SumExpenses(ctx context.Context, userID string, p repository.Period) (float64, error)
}

// Aggregator выполняет конвейер, привязанный к владельцу.
type Aggregator interface {
	Aggregate(ctx context.Context, scoped pipeline.Scoped) ([]map[string]any, error)
}

type AssistantService struct {
	users      UserProvider
	ledger     Ledger
	aggregator Aggregator
	queryLLM   llm.Completer
	summaryLLM llm.Completer
	log        *slog.Logger
	now        func() time.Time
}

func NewAssistantService(
	users UserProvider,
	ledger Ledger,
	aggregator Aggregator,
	queryLLM, summaryLLM llm.Completer,
	log *slog.Logger,
) *AssistantService {
	return &AssistantService{
		users:      users,
		ledger:     ledger,
		aggregator: aggregator,
		queryLLM:   queryLLM,
		summaryLLM: summaryLLM,
		log:        log,
		now:        time.Now,
	}
}

// Answer отвечает на вопрос пользователя. Ошибка возвращается только при сбое
// хранилища или модели-пересказчика; сбои аналитической ветки дают FallbackReply.
func (s *AssistantService) Answer(ctx context.Context, userID, query string) (string, error) {
	const op = "services.assistant.Answer"
	log := s.log.With(slog.String("op", op))

	if query == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyQuery)
	}

	firstName, err := s.firstName(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	intent := Classify(query)
	metrics.IncIntent(string(intent))
	log.Debug("classified query", slog.String("intent", string(intent)))

	var data any
	switch intent {
	case IntentGreeting:
		return fmt.Sprintf("Hi %s! 🚀 Ready to track expenses?", firstName), nil
	case IntentBalance:
		sheet, err := s.BalanceSheet(ctx, userID, query)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		data = sheet
	default:
		docs, err := s.analytics(ctx, userID, query)
		if err != nil {
			log.Warn("analytics query failed, using fallback", sl.Err(err))
			metrics.IncFallback()
			return FallbackReply, nil
		}
		log.Info("analytics query executed", slog.Int("results", len(docs)))
		data = docs
	}

	prompt, err := BuildSummaryPrompt(query, firstName, data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	reply, err := s.summaryLLM.Complete(ctx, prompt)
	if err != nil {
		log.Error("summary delegate failed", sl.Err(err))
		return "", fmt.Errorf("%s: %w: %w", op, ErrSummaryFailed, err)
	}
	return FormatReply(reply), nil
}

// BalanceSheet считает доходы и расходы за месяц, найденный в тексте запроса
// (по умолчанию текущий). Год не учитывается, суммы не округляются.
func (s *AssistantService) BalanceSheet(ctx context.Context, userID, query string) (*models.BalanceSheet, error) {
	const op = "services.assistant.BalanceSheet"
	// month в хранилище выводится по UTC
	m := month.Detect(query, s.now().UTC())
	p := repository.Period{Month: m}

	income, err := s.ledger.SumIncomes(ctx, userID, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	expense, err := s.ledger.SumExpenses(ctx, userID, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.BalanceSheet{
		Type:         models.BalanceSheetType,
		Month:        month.Name(m),
		TotalIncome:  income,
		TotalExpense: expense,
		Balance:      income - expense,
	}, nil
}

func (s *AssistantService) analytics(ctx context.Context, userID, query string) ([]map[string]any, error) {
	const op = "services.assistant.analytics"
	raw, err := s.queryLLM.Complete(ctx, BuildQueryPrompt(query, userID, s.now().UTC().Year()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var parsed pipeline.Parsed
	switch res := pipeline.Parse(raw).(type) {
	case pipeline.Parsed:
		parsed = res
	case pipeline.Failure:
		return nil, fmt.Errorf("%s: unparsable pipeline: %s", op, res.Reason)
	}

	docs, err := s.aggregator.Aggregate(ctx, pipeline.Scope(parsed, userID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if docs == nil {
		docs = []map[string]any{}
	}
	return docs, nil
}

func (s *AssistantService) firstName(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return (*models.User)(nil).FirstName(), nil
	}
	if err != nil {
		return "", err
	}
	return user.FirstName(), nil
}
