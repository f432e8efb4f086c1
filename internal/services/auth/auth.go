// Package services содержит бизнес-логику регистрации, входа и восстановления пароля.
package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/dhanrekha/internal/lib/jwt"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/password"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/sl"
	"github.com/magabrotheeeer/dhanrekha/internal/models"
	"github.com/magabrotheeeer/dhanrekha/internal/storage/repository"
)

var (
	ErrUserExists         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrResetTokenActive   = errors.New("reset token already issued")
	ErrInvalidResetToken  = errors.New("reset token is invalid or expired")
)

const (
	resetTokenBytes      = 20
	defaultResetTokenTTL = 5 * time.Minute
)

// UserRepository описывает контракт хранилища пользователей.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByResetToken(ctx context.Context, token string, now time.Time) (*models.User, error)
	SetResetToken(ctx context.Context, userID, token string, expires time.Time) error
	ClearResetToken(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// Publisher публикует события в брокер сообщений.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// AuthService отвечает за регистрацию, вход и сброс пароля.
type AuthService struct {
	users     UserRepository
	jwtMaker  jwt.Maker
	publisher Publisher
	resetTTL  time.Duration
	log       *slog.Logger
	now       func() time.Time
	newToken  func() (string, error)
}

// NewAuthService создаёт AuthService. resetTTL время жизни токена сброса пароля.
func NewAuthService(users UserRepository, jwtMaker jwt.Maker, publisher Publisher,
	resetTTL time.Duration, log *slog.Logger) *AuthService {
	if resetTTL <= 0 {
		resetTTL = defaultResetTokenTTL
	}
	return &AuthService{
		users:     users,
		jwtMaker:  jwtMaker,
		publisher: publisher,
		resetTTL:  resetTTL,
		log:       log,
		now:       time.Now,
		newToken:  randomToken,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register создаёт пользователя и сразу выдаёт ему токен доступа.
func (s *AuthService) Register(ctx context.Context, name, email, rawPassword string) (*models.AuthResponse, error) {
	const op = "services.auth.Register"
	email = normalizeEmail(email)

	_, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%s: %w", op, ErrUserExists)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hashed, err := password.Hash(rawPassword)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, err := s.users.CreateUser(ctx, models.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hashed,
	})
	if errors.Is(err, repository.ErrUserExists) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserExists)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.issue(op, user)
}

// Login проверяет пароль и выдаёт токен доступа.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string) (*models.AuthResponse, error) {
	const op = "services.auth.Login"
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := password.Compare(user.PasswordHash, rawPassword); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.issue(op, user)
}

func (s *AuthService) issue(op string, user *models.User) (*models.AuthResponse, error) {
	token, err := s.jwtMaker.GenerateToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.AuthResponse{Token: token, User: user.Profile()}, nil
}

// Me возвращает профиль пользователя.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.Profile, error) {
	const op = "services.auth.Me"
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	profile := user.Profile()
	return &profile, nil
}

// ForgotPassword выдаёт токен сброса пароля и публикует событие для отправки письма.
// Пока предыдущий токен действует, новый не выдаётся.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	const op = "services.auth.ForgotPassword"
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	if user.ResetPasswordToken != nil && user.ResetPasswordExpires != nil &&
		user.ResetPasswordExpires.After(now) {
		return fmt.Errorf("%s: %w", op, ErrResetTokenActive)
	}

	token, err := s.newToken()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	expires := now.Add(s.resetTTL)
	if err := s.users.SetResetToken(ctx, user.ID, token, expires); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	event := models.PasswordResetEvent{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Token:     token,
		ExpiresAt: expires,
	}
	if err := s.publisher.Publish(ctx, rabbitmq.RoutingPasswordReset, event); err != nil {
		if clearErr := s.users.ClearResetToken(ctx, user.ID); clearErr != nil {
			s.log.Error("failed to roll back reset token", sl.Op(op), sl.Err(clearErr))
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("password reset requested", slog.String("user_id", user.ID))
	return nil
}

// VerifyResetToken проверяет, что токен существует и ещё действует.
func (s *AuthService) VerifyResetToken(ctx context.Context, token string) error {
	const op = "services.auth.VerifyResetToken"
	if _, err := s.userByResetToken(ctx, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ResetPassword меняет пароль по действующему токену. Токен после этого недействителен.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	const op = "services.auth.ResetPassword"
	user, err := s.userByResetToken(ctx, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	hashed, err := password.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hashed); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *AuthService) userByResetToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrInvalidResetToken
	}
	user, err := s.users.GetUserByResetToken(ctx, token, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidResetToken
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func randomToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
