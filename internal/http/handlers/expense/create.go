package expense

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/dhanrekha/internal/http/response"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/sl"
	"github.com/magabrotheeeer/dhanrekha/internal/models"
)

// Create godoc
// @Summary Добавить расход
// @Description Создаёт расход. Месяц и год вычисляются из даты.
// @Tags Expenses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.ExpenseRequest true "Расход"
// @Success 201 {object} response.Response{data=models.Expense}
// @Failure 400 {object} response.ErrorResponse "Некорректные данные"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/expenses [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log, userID, ok := h.begin(w, r, "handlers.expense.Create")
	if !ok {
		return
	}

	var req models.ExpenseRequest
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
	if err != nil {
		fail(w, r, log, err, "failed to create expense")
		return
	}

	log.Info("expense created", slog.String("id", created.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(created))
}

// Bulk godoc
// @Summary Добавить несколько расходов
// @Description Сохраняет массив расходов в одной транзакции: либо все, либо ни одного.
// @Tags Expenses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body []models.ExpenseRequest true "Расходы"
// @Success 201 {object} response.Response{data=models.BulkResult}
// @Failure 400 {object} response.ErrorResponse "Некорректные данные"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/expenses/bulk [post]
func (h *Handler) Bulk(w http.ResponseWriter, r *http.Request) {
	log, userID, ok := h.begin(w, r, "handlers.expense.Bulk")
	if !ok {
		return
	}

	var reqs []models.ExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("request body must be an array of expenses"))
		return
	}
	for i, req := range reqs {
		if err := h.validate.Struct(req); err != nil {
			log.Warn("validation failed", slog.Int("item", i), sl.Err(err))
			resp := response.ValidationError(err.(validator.ValidationErrors))
			resp.Error = fmt.Sprintf("item %d: %s", i, resp.Error)
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, resp)
			return
		}
	}

	count, err := h.service.CreateBulk(r.Context(), userID, reqs)
	if err != nil {
		fail(w, r, log, err, "failed to add expenses")
		return
	}

	log.Info("expenses created", slog.Int("count", count))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(models.BulkResult{Count: count}))
}
