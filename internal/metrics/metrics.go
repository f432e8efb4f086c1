// Package metrics объявляет метрики Prometheus сервиса.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dhanrekha_http_requests_total",
		Help: "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dhanrekha_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	llmCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dhanrekha_llm_calls_total",
		Help: "LLM completion calls by delegate and outcome.",
	}, []string{"delegate", "status"})

	llmDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dhanrekha_llm_call_duration_seconds",
		Help:    "LLM completion latency by delegate.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"delegate"})

	assistantIntents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dhanrekha_assistant_intents_total",
		Help: "Assistant queries by detected intent.",
	}, []string{"intent"})

	assistantFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dhanrekha_assistant_fallbacks_total",
		Help: "Analytics queries answered with the fallback reply.",
	})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dhanrekha_notifications_total",
		Help: "Notification events handled by kind and outcome.",
	}, []string{"kind", "status"})
)

// Middleware считает запросы и их длительность по шаблону маршрута chi.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// LLMTimer измеряет один вызов LLM.
type LLMTimer struct {
	delegate string
	start    time.Time
}

func NewLLMTimer(delegate string) *LLMTimer {
	return &LLMTimer{delegate: delegate, start: time.Now()}
}

// Observe фиксирует длительность и исход вызова.
func (t *LLMTimer) Observe(status string) {
	llmCalls.WithLabelValues(t.delegate, status).Inc()
	llmDuration.WithLabelValues(t.delegate).Observe(time.Since(t.start).Seconds())
}

func IncIntent(intent string) {
	assistantIntents.WithLabelValues(intent).Inc()
}

func IncFallback() {
	assistantFallbacks.Inc()
}

// IncNotification учитывает обработанное событие уведомления.
func IncNotification(kind, status string) {
	notifications.WithLabelValues(kind, status).Inc()
}
