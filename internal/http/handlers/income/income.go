// Package income реализует HTTP-обработчики доходов.
package income

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/dhanrekha/internal/http/middlewarectx"
	"github.com/magabrotheeeer/dhanrekha/internal/http/response"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/sl"
	"github.com/magabrotheeeer/dhanrekha/internal/models"
	incomeservice "github.com/magabrotheeeer/dhanrekha/internal/services/income"
)

type Service interface {
	Create(ctx context.Context, userID string, req models.IncomeRequest) (*models.Income, error)
	List(ctx context.Context, userID string, month, year int) ([]models.Income, error)
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

// Create godoc
// @Summary Добавить доход
// @Tags Income
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.IncomeRequest true "Доход"
// @Success 201 {object} response.Response{data=models.Income}
// @Failure 400 {object} response.ErrorResponse "Некорректные данные"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/income [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log, userID, ok := h.begin(w, r, "handlers.income.Create")
	if !ok {
		return
	}

	var req models.IncomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	created, err := h.service.Create(r.Context(), userID, req)
	switch {
	case errors.Is(err, incomeservice.ErrInvalidDate):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid date"))
		return
	case errors.Is(err, incomeservice.ErrInvalidAmount):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(incomeservice.ErrInvalidAmount.Error()))
		return
	case err != nil:
		log.Error("failed to create income", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to add income"))
		return
	}

	log.Info("income created", slog.String("id", created.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(created))
}

// List godoc
// @Summary Список доходов
// @Description Фильтр применяется, только если указаны и месяц, и год
// @Tags Income
// @Produce json
// @Security BearerAuth
// @Param month query int false "Месяц 1-12"
// @Param year query int false "Год"
// @Success 200 {object} response.Response{data=[]models.Income}
// @Failure 400 {object} response.ErrorResponse "Некорректный период"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/income [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log, userID, ok := h.begin(w, r, "handlers.income.List")
	if !ok {
		return
	}

	q := r.URL.Query()
	var m, y int
	if q.Get("month") != "" && q.Get("year") != "" {
		var errM, errY error
		m, errM = strconv.Atoi(q.Get("month"))
		y, errY = strconv.Atoi(q.Get("year"))
		if errM != nil || errY != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("month and year must be numbers"))
			return
		}
	}

	list, err := h.service.List(r.Context(), userID, m, y)
	if errors.Is(err, incomeservice.ErrInvalidPeriod) {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(incomeservice.ErrInvalidPeriod.Error()))
		return
	}
	if err != nil {
		log.Error("failed to list incomes", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to fetch income"))
		return
	}
	if list == nil {
		list = []models.Income{}
	}
	render.JSON(w, r, response.StatusOKWithData(list))
}
