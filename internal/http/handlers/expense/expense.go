// Package expense реализует HTTP-обработчики расходов: создание, выборки,
// сводки и удаление. Все обработчики работают за JWTMiddleware.
package expense

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/dhanrekha/internal/http/middlewarectx"
	"github.com/magabrotheeeer/dhanrekha/internal/http/response"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/sl"
	"github.com/magabrotheeeer/dhanrekha/internal/models"
	expenseservice "github.com/magabrotheeeer/dhanrekha/internal/services/expense"
)

// Service описывает бизнес-логику расходов.
type Service interface {
	Create(ctx context.Context, userID string, req models.ExpenseRequest) (*models.Expense, error)
	CreateBulk(ctx context.Context, userID string, reqs []models.ExpenseRequest) (int, error)
	List(ctx context.Context, userID, startDate, endDate string) ([]models.Expense, error)
	Weekly(ctx context.Context, userID, startDate, endDate string) ([]models.Expense, error)
	CategorySummary(ctx context.Context, userID, startDate, endDate string) ([]models.CategoryTotal, error)
	Balance(ctx context.Context, userID string) (*models.Balance, error)
	MonthlySummary(ctx context.Context, userID string, month, year int) (*models.MonthlySummary, error)
	ByMonth(ctx context.Context, userID string, month, year int) ([]models.Expense, error)
	Delete(ctx context.Context, userID, id string) (*models.Expense, error)
}

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// begin готовит логгер запроса и достаёт пользователя из контекста.
// Если пользователя нет, отвечает 401 и возвращает ok=false.
func (h *Handler) begin(w http.ResponseWriter, r *http.Request, op string) (*slog.Logger, string, bool) {
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	userID, ok := middlewarectx.UserIDFromContext(r.Context())
	if !ok {
		log.Error("user id not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return log, "", false
	}
	return log, userID, true
}

func isInputError(err error) bool {
	return errors.Is(err, expenseservice.ErrInvalidAmount) ||
		errors.Is(err, expenseservice.ErrInvalidCategory) ||
		errors.Is(err, expenseservice.ErrInvalidDate) ||
		errors.Is(err, expenseservice.ErrInvalidPeriod) ||
		errors.Is(err, expenseservice.ErrEmptyBatch)
}

// fail отвечает 400 на ошибки входных данных и 500 на остальные.
func fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, msg string) {
	if isInputError(err) {
		log.Warn("rejected request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(publicMessage(err)))
		return
	}
	log.Error(msg, sl.Err(err))
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, response.Error(msg))
}

// publicMessage отрезает имя операции сервиса от текста ошибки.
func publicMessage(err error) string {
	if _, msg, ok := strings.Cut(err.Error(), ": "); ok {
		return msg
	}
	return err.Error()
}

// periodParams читает обязательные month и year из строки запроса.
func periodParams(r *http.Request) (int, int, bool) {
	q := r.URL.Query()
	m, errM := strconv.Atoi(q.Get("month"))
	y, errY := strconv.Atoi(q.Get("year"))
	if errM != nil || errY != nil {
		return 0, 0, false
	}
	return m, y, true
}
