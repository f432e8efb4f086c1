// Package password реализует HTTP-обработчики восстановления пароля:
// запрос токена, проверку токена и установку нового пароля.
package password

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/dhanrekha/internal/http/response"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/sl"
	"github.com/magabrotheeeer/dhanrekha/internal/models"
	authservice "github.com/magabrotheeeer/dhanrekha/internal/services/auth"
)

type Service interface {
	ForgotPassword(ctx context.Context, email string) error
	VerifyResetToken(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
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

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Forgot godoc
// @Summary Запрос сброса пароля
// @Description Выдаёт токен сброса на 5 минут и публикует событие для отправки письма
// @Tags Password
// @Accept json
// @Produce json
// @Param request body models.ForgotPasswordRequest true "Email"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 429 {object} response.ErrorResponse "Токен уже выдан"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/forgot-password [post]
func (h *Handler) Forgot(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.password.Forgot")

	var req models.ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	err := h.service.ForgotPassword(r.Context(), req.Email)
	switch {
	case errors.Is(err, authservice.ErrUserNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("user not found"))
		return
	case errors.Is(err, authservice.ErrResetTokenActive):
		render.Status(r, http.StatusTooManyRequests)
		render.JSON(w, r, response.Error("reset link already sent, please wait 5 minutes"))
		return
	case err != nil:
		log.Error("failed to issue reset token", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to send reset link"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "reset link sent",
	}))
}

// Verify godoc
// @Summary Проверка токена сброса
// @Tags Password
// @Produce json
// @Param token path string true "Токен сброса"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Токен недействителен или истёк"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/reset-password/{token} [get]
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.password.Verify")

	err := h.service.VerifyResetToken(r.Context(), chi.URLParam(r, "token"))
	if errors.Is(err, authservice.ErrInvalidResetToken) {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("link expired or invalid"))
		return
	}
	if err != nil {
		log.Error("failed to verify reset token", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to verify token"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "token is valid",
	}))
}

// Reset godoc
// @Summary Установка нового пароля
// @Tags Password
// @Accept json
// @Produce json
// @Param token path string true "Токен сброса"
// @Param request body models.ResetPasswordRequest true "Новый пароль"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Токен недействителен или истёк"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/reset-password/{token} [post]
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.password.Reset")

	var req models.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password)
	if errors.Is(err, authservice.ErrInvalidResetToken) {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("link expired or invalid"))
		return
	}
	if err != nil {
		log.Error("failed to reset password", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to reset password"))
		return
	}

	log.Info("password reset")
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "password updated",
	}))
}
