package expense

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/dhanrekha/internal/http/response"
	"github.com/magabrotheeeer/dhanrekha/internal/models"
)

func orEmpty(list []models.Expense) []models.Expense {
	if list == nil {
		return []models.Expense{}
	}
	return list
}

// List godoc
// @Summary Список расходов
// @Description Расходы пользователя за необязательный период, новые первыми
// @Tags Expenses
// @Produce json
// @Security BearerAuth
// @Param startDate query string false "Начало периода (YYYY-MM-DD)"
// @Param endDate query string false "Конец периода включительно (YYYY-MM-DD)"
// @Success 200 {object} response.Response{data=[]models.Expense}
// @Failure 400 {object} response.ErrorResponse "Некорректная дата"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/expenses [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log, userID, ok := h.begin(w, r, "handlers.expense.List")
	if !ok {
		return
	}
	q := r.URL.Query()
	list, err := h.service.List(r.Context(), userID, q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		fail(w, r, log, err, "failed to list expenses")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(orEmpty(list)))
}

// Weekly godoc
// @Summary Недавние расходы
// @Description С периодом возвращает все расходы за период, без него три последних за 7 дней
// @Tags Expenses
// @Produce json
// @Security BearerAuth
// @Param startDate query string false "Начало периода (YYYY-MM-DD)"
// @Param endDate query string false "Конец периода включительно (YYYY-MM-DD)"
// @Success 200 {object} response.Response{data=[]models.Expense}
// @Failure 400 {object} response.ErrorResponse "Некорректная дата"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/expenses/weekly [get]
func (h *Handler) Weekly(w http.ResponseWriter, r *http.Request) {
	log, userID, ok := h.begin(w, r, "handlers.expense.Weekly")
	if !ok {
		return
	}
	q := r.URL.Query()
	list, err := h.service.Weekly(r.Context(), userID, q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		fail(w, r, log, err, "failed to list recent expenses")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(orEmpty(list)))
}

// ByMonth godoc
// @Summary Расходы за месяц
// @Tags Expenses
// @Produce json
// @Security BearerAuth
// @Param month query int true "Месяц 1-12"
// @Param year query int true "Год"
// @Success 200 {object} response.Response{data=[]models.Expense}
// @Failure 400 {object} response.ErrorResponse "Не указан месяц или год"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/expenses/month [get]
func (h *Handler) ByMonth(w http.ResponseWriter, r *http.Request) {
	log, userID, ok := h.begin(w, r, "handlers.expense.ByMonth")
	if !ok {
		return
	}
	m, y, ok := periodParams(r)
	if !ok {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("month and year required"))
		return
	}
	list, err := h.service.ByMonth(r.Context(), userID, m, y)
	if err != nil {
		fail(w, r, log, err, "failed to list monthly expenses")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(orEmpty(list)))
}
