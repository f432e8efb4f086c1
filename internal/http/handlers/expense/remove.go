package expense

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/dhanrekha/internal/http/response"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/sl"
	expenseservice "github.com/magabrotheeeer/dhanrekha/internal/services/expense"
)

// Remove godoc
// @Summary Удалить расход
// @Description Удаляет расход текущего пользователя. Чужой расход считается ненайденным.
// @Tags Expenses
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID расхода (UUID)"
// @Success 200 {object} response.Response{data=models.Expense}
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Расход не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/expenses/{id} [delete]
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	log, userID, ok := h.begin(w, r, "handlers.expense.Remove")
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		log.Warn("invalid id format", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid id"))
		return
	}

	deleted, err := h.service.Delete(r.Context(), userID, id.String())
	if errors.Is(err, expenseservice.ErrExpenseNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("expense not found"))
		return
	}
	if err != nil {
		log.Error("failed to delete expense", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to delete expense"))
		return
	}

	log.Info("expense deleted", slog.String("id", deleted.ID))
	render.JSON(w, r, response.StatusOKWithData(deleted))
}
