package dhanrekha

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/magabrotheeeer/dhanrekha/docs"
	"github.com/magabrotheeeer/dhanrekha/internal/config"
	"github.com/magabrotheeeer/dhanrekha/internal/http/handlers/ai"
	"github.com/magabrotheeeer/dhanrekha/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/dhanrekha/internal/http/handlers/auth/me"
	"github.com/magabrotheeeer/dhanrekha/internal/http/handlers/auth/password"
	"github.com/magabrotheeeer/dhanrekha/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/dhanrekha/internal/http/handlers/expense"
	"github.com/magabrotheeeer/dhanrekha/internal/http/handlers/health"
	"github.com/magabrotheeeer/dhanrekha/internal/http/handlers/income"
	"github.com/magabrotheeeer/dhanrekha/internal/http/middlewarectx"
	"github.com/magabrotheeeer/dhanrekha/internal/metrics"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, limits config.RateLimit, s Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
		metrics.Middleware,
	)

	authLimiter := middlewarectx.NewRateLimiter(limits.AuthRPS, limits.AuthBurst)
	aiLimiter := middlewarectx.NewRateLimiter(limits.AIRPS, limits.AIBurst)
	jwtAuth := middlewarectx.JWTMiddleware(s.JWT, logger)

	passwordHandler := password.New(logger, s.Auth)
	expenseHandler := expense.New(logger, s.Expense)
	incomeHandler := income.New(logger, s.Income)

	r.Get("/health", health.New(logger, s.DB).ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		// Открытые конечные точки с ограничением частоты
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(authLimiter, logger))
			r.Post("/auth/register", register.New(logger, s.Auth).ServeHTTP)
			r.Post("/auth/login", login.New(logger, s.Auth).ServeHTTP)
			r.Post("/forgot-password", passwordHandler.Forgot)
		})
		r.Get("/reset-password/{token}", passwordHandler.Verify)
		r.Post("/reset-password/{token}", passwordHandler.Reset)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth)
			r.Get("/auth/me", me.New(logger, s.Auth).ServeHTTP)

			r.Route("/expenses", func(r chi.Router) {
				r.Post("/", expenseHandler.Create)
				r.Get("/", expenseHandler.List)
				r.Post("/bulk", expenseHandler.Bulk)
				r.Get("/weekly", expenseHandler.Weekly)
				r.Get("/summary/category", expenseHandler.CategorySummary)
				r.Get("/summary/monthly", expenseHandler.MonthlySummary)
				r.Get("/balance", expenseHandler.Balance)
				r.Get("/month", expenseHandler.ByMonth)
				r.Delete("/{id}", expenseHandler.Remove)
			})

			r.Post("/income", incomeHandler.Create)
			r.Get("/income", incomeHandler.List)

			r.With(middlewarectx.RateLimitMiddleware(aiLimiter, logger)).
				Post("/ai/query", ai.New(logger, s.Assistant).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
