// Package services обрабатывает события уведомлений из брокера.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/magabrotheeeer/dhanrekha/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/sl"
	"github.com/magabrotheeeer/dhanrekha/internal/metrics"
	"github.com/magabrotheeeer/dhanrekha/internal/models"
)

const kindPasswordReset = "password_reset"

var ErrInvalidEvent = errors.New("invalid notification event")

// Email готовое к отправке письмо.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Mailer доставляет письма.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

type NotifierService struct {
	mailer      Mailer
	frontendURL string
	log         *slog.Logger
	now         func() time.Time
}

// NewNotifierService создает новый экземпляр NotifierService.
// frontendURL: адрес клиента, на котором открывается страница сброса пароля.
func NewNotifierService(mailer Mailer, frontendURL string, log *slog.Logger) *NotifierService {
	return &NotifierService{
		mailer:      mailer,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         log,
		now:         time.Now,
	}
}

// HandlePasswordReset разбирает событие сброса пароля и отправляет письмо со ссылкой.
// Битые и уже истёкшие события отбрасываются через rabbitmq.ErrDropMessage,
// ошибка доставки возвращает сообщение в очередь.
func (s *NotifierService) HandlePasswordReset(ctx context.Context, body []byte) error {
	const op = "notifier.HandlePasswordReset"

	var event models.PasswordResetEvent
	if err := json.Unmarshal(body, &event); err != nil {
		metrics.IncNotification(kindPasswordReset, metrics.StatusError)
		return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrDropMessage, err)
	}
	if event.Email == "" || event.Token == "" {
		metrics.IncNotification(kindPasswordReset, metrics.StatusError)
		return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrDropMessage, ErrInvalidEvent)
	}

	log := s.log.With(sl.Op(op), slog.String("user_id", event.UserID))
	if !event.ExpiresAt.IsZero() && !event.ExpiresAt.After(s.now()) {
		log.Info("reset token already expired, skipping")
		metrics.IncNotification(kindPasswordReset, "expired")
		return fmt.Errorf("%s: %w: token expired", op, rabbitmq.ErrDropMessage)
	}

	email := s.passwordResetEmail(event)
	if err := s.mailer.Send(ctx, email); err != nil {
		metrics.IncNotification(kindPasswordReset, metrics.StatusError)
		return fmt.Errorf("%s: %w", op, err)
	}

	metrics.IncNotification(kindPasswordReset, metrics.StatusOK)
	log.Info("password reset email sent")
	return nil
}

// ResetLink собирает ссылку на страницу сброса пароля.
func (s *NotifierService) ResetLink(token string) string {
	return s.frontendURL + "/reset-password.html?token=" + url.QueryEscape(token)
}

func (s *NotifierService) passwordResetEmail(event models.PasswordResetEvent) Email {
	name := event.Name
	if name == "" {
		name = "there"
	}
	validFor := "5 minutes"
	if !event.ExpiresAt.IsZero() {
		if left := event.ExpiresAt.Sub(s.now()).Round(time.Minute); left >= time.Minute {
			validFor = fmt.Sprintf("%d minutes", int(left.Minutes()))
		}
	}

	body := fmt.Sprintf("Hello %s,\n\n"+
		"We received a request to reset your password for DhanRekha.\n"+
		"Please click the link below to choose a new password:\n\n"+
		"%s\n\n"+
		"This link is valid for %s.\n"+
		"If you did not request this change, please ignore this email.\n",
		name, s.ResetLink(event.Token), validFor)

	return Email{
		To:      event.Email,
		Subject: "Password Reset Request",
		Body:    body,
	}
}

// LogMailer пишет письма в лог вместо отправки.
type LogMailer struct {
	log *slog.Logger
}

func NewLogMailer(log *slog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.log.Info("email",
		slog.String("to", email.To),
		slog.String("subject", email.Subject),
	)
	m.log.Debug("email body", slog.String("body", email.Body))
	return nil
}
