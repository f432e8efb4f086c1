package expense

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/dhanrekha/internal/http/response"
	"github.com/magabrotheeeer/dhanrekha/internal/models"
)

// CategorySummary godoc
// @Summary Суммы по категориям
// @Tags Summary
// @Produce json
// @Security BearerAuth
// @Param startDate query string false "Начало периода (YYYY-MM-DD)"
// @Param endDate query string false "Конец периода включительно (YYYY-MM-DD)"
// @Success 200 {object} response.Response{data=[]models.CategoryTotal}
// @Failure 400 {object} response.ErrorResponse "Некорректная дата"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/expenses/summary/category [get]
func (h *Handler) CategorySummary(w http.ResponseWriter, r *http.Request) {
	log, userID, ok := h.begin(w, r, "handlers.expense.CategorySummary")
	if !ok {
		return
	}
	q := r.URL.Query()
	totals, err := h.service.CategorySummary(r.Context(), userID, q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		fail(w, r, log, err, "failed to build category summary")
		return
	}
	if totals == nil {
		totals = []models.CategoryTotal{}
	}
	render.JSON(w, r, response.StatusOKWithData(totals))
}

// Balance godoc
// @Summary Остаток за всё время
// @Tags Summary
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.Balance}
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/expenses/balance [get]
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	log, userID, ok := h.begin(w, r, "handlers.expense.Balance")
	if !ok {
		return
	}
	balance, err := h.service.Balance(r.Context(), userID)
	if err != nil {
		fail(w, r, log, err, "failed to fetch balance")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(balance))
}

// MonthlySummary godoc
// @Summary Сводка за месяц
// @Description Доходы, расходы, баланс и категории по убыванию суммы. Результат кешируется.
// @Tags Summary
// @Produce json
// @Security BearerAuth
// @Param month query int true "Месяц 1-12"
// @Param year query int true "Год"
// @Success 200 {object} response.Response{data=models.MonthlySummary}
// @Failure 400 {object} response.ErrorResponse "Не указан месяц или год"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/expenses/summary/monthly [get]
func (h *Handler) MonthlySummary(w http.ResponseWriter, r *http.Request) {
	log, userID, ok := h.begin(w, r, "handlers.expense.MonthlySummary")
	if !ok {
		return
	}
	m, y, ok := periodParams(r)
	if !ok {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("month and year required"))
		return
	}
	summary, err := h.service.MonthlySummary(r.Context(), userID, m, y)
	if err != nil {
		fail(w, r, log, err, "failed to build monthly summary")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(summary))
}
