// Package notifier собирает воркер, который читает события уведомлений из RabbitMQ.
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/dhanrekha/internal/config"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/sl"
	notifierservice "github.com/magabrotheeeer/dhanrekha/internal/services/notifier"
)

const passwordResetQueue = "notification.password_reset"

type App struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	notifier *notifierservice.NotifierService
	workers  int
	logger   *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "notifier.New"

	conn, err := rabbitmq.Connect(cfg.URLRabbitMQ, cfg.ConnectRetries, cfg.ConnectDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(cfg.Workers, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	mailer := notifierservice.NewLogMailer(logger)
	return &App{
		conn:     conn,
		ch:       ch,
		notifier: notifierservice.NewNotifierService(mailer, cfg.FrontendURL, logger),
		workers:  cfg.Workers,
		logger:   logger,
	}, nil
}

// Run обрабатывает очередь сброса пароля до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	a.logger.Info("notifier started", slog.String("queue", passwordResetQueue), slog.Int("workers", a.workers))
	err := rabbitmq.ConsumeMessages(ctx, a.ch, passwordResetQueue, a.workers, a.notifier.HandlePasswordReset, a.logger)
	if err != nil {
		a.logger.Error("failed to consume password reset queue", sl.Err(err))
		return err
	}

	a.logger.Info("notifier shutting down gracefully")
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
}
