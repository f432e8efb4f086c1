// Package me возвращает профиль текущего пользователя.
package me

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/dhanrekha/internal/http/middlewarectx"
	"github.com/magabrotheeeer/dhanrekha/internal/http/response"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/sl"
	"github.com/magabrotheeeer/dhanrekha/internal/models"
	authservice "github.com/magabrotheeeer/dhanrekha/internal/services/auth"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	Me(ctx context.Context, userID string) (*models.Profile, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Профиль пользователя
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.Profile}
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/auth/me [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.me"
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

	profile, err := h.service.Me(r.Context(), userID)
	if errors.Is(err, authservice.ErrUserNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("user not found"))
		return
	}
	if err != nil {
		log.Error("failed to load profile", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to load profile"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(profile))
}
