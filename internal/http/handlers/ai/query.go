// Package ai реализует HTTP-обработчик чат-ассистента.
package ai

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/dhanrekha/internal/http/middlewarectx"
	"github.com/magabrotheeeer/dhanrekha/internal/http/response"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/sl"
	"github.com/magabrotheeeer/dhanrekha/internal/models"
)

type Service interface {
	Answer(ctx context.Context, userID, query string) (string, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Вопрос ассистенту
// @Description Отвечает на вопрос о расходах и доходах пользователя на естественном языке.
// @Description Ответ содержит HTML-разметку (<br>, <b>).
// @Tags AI
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.AIQueryRequest true "Вопрос"
// @Success 200 {object} models.AIQueryResponse
// @Failure 400 {object} response.ErrorResponse "Пустой вопрос"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 429 {object} response.ErrorResponse "Слишком много запросов"
// @Failure 500 {object} response.ErrorResponse "AI failed"
// @Router /api/ai/query [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.ai.query"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFromContext(r.Context())
	if !ok {
		log.Error("user id not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req models.AIQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("query required"))
		return
	}

	reply, err := h.service.Answer(r.Context(), userID, req.Query)
	if err != nil {
		log.Error("assistant failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("AI failed"))
		return
	}

	render.JSON(w, r, models.AIQueryResponse{Reply: reply})
}
