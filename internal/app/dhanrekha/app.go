// Package dhanrekha собирает HTTP-приложение: хранилище, кеш, брокер,
// LLM-клиенты, сервисы и маршруты.
package dhanrekha

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/dhanrekha/internal/cache"
	"github.com/magabrotheeeer/dhanrekha/internal/config"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/jwt"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/sl"
	"github.com/magabrotheeeer/dhanrekha/internal/llm"
	"github.com/magabrotheeeer/dhanrekha/internal/migrations"
	assistantservice "github.com/magabrotheeeer/dhanrekha/internal/services/assistant"
	authservice "github.com/magabrotheeeer/dhanrekha/internal/services/auth"
	expenseservice "github.com/magabrotheeeer/dhanrekha/internal/services/expense"
	incomeservice "github.com/magabrotheeeer/dhanrekha/internal/services/income"
	"github.com/magabrotheeeer/dhanrekha/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	amqp   *amqp.Connection
	ch     *amqp.Channel
}

// Services набор сервисов, которые обслуживают маршруты.
type Services struct {
	Auth      *authservice.AuthService
	Expense   *expenseservice.ExpenseService
	Income    *incomeservice.IncomeService
	Assistant *assistantservice.AssistantService
	JWT       jwt.Maker
	DB        *repository.Storage
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.New"

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	db.AggregateLimit = cfg.Assistant.MaxResultRows
	if err = migrations.Run(db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(cfg.URLRabbitMQ, cfg.ConnectRetries, cfg.ConnectDelay)
	if err != nil {
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		_ = conn.Close()
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	services := Services{
		Auth: authservice.NewAuthService(db, jwtMaker, rabbitmq.NewPublisher(ch),
			cfg.ResetTokenTTL, logger),
		Expense: expenseservice.NewExpenseService(db, cacheRedis, cfg.SummaryTTL, logger),
		Income:  incomeservice.NewIncomeService(db, cacheRedis, logger),
		Assistant: assistantservice.NewAssistantService(db, db, db,
			llm.New("query", cfg.Assistant.QueryModel),
			llm.New("summary", cfg.Assistant.SummaryModel),
			logger),
		JWT: jwtMaker,
		DB:  db,
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg.RateLimit, services)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
		amqp:   conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP-сервер и блокируется до отмены ctx или ошибки сервера.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err = a.server.Shutdown(timeoutCtx)
	}
	a.close()
	return err
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Warn("failed to close rabbitmq channel", sl.Err(err))
	}
	if err := a.amqp.Close(); err != nil {
		a.logger.Warn("failed to close rabbitmq connection", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", sl.Err(err))
	}
}
