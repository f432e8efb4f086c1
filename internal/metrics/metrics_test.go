package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_CountsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/expenses/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("/api/expenses/{id}", http.MethodGet, "404"))

	for _, id := range []string{"a", "b"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/expenses/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	}

	after := testutil.ToFloat64(httpRequests.WithLabelValues("/api/expenses/{id}", http.MethodGet, "404"))
	assert.Equal(t, before+2, after)
}

func TestMiddleware_ImplicitOK(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("/health", http.MethodGet, "200"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("/health", http.MethodGet, "200")))
}

func TestLLMTimer(t *testing.T) {
	before := testutil.ToFloat64(llmCalls.WithLabelValues("query", StatusError))

	NewLLMTimer("query").Observe(StatusError)

	assert.Equal(t, before+1, testutil.ToFloat64(llmCalls.WithLabelValues("query", StatusError)))
}

func TestIntentAndFallbackCounters(t *testing.T) {
	intentBefore := testutil.ToFloat64(assistantIntents.WithLabelValues("greeting"))
	fallbackBefore := testutil.ToFloat64(assistantFallbacks)

	IncIntent("greeting")
	IncFallback()

	assert.Equal(t, intentBefore+1, testutil.ToFloat64(assistantIntents.WithLabelValues("greeting")))
	assert.Equal(t, fallbackBefore+1, testutil.ToFloat64(assistantFallbacks))
}

func TestIncNotification(t *testing.T) {
	before := testutil.ToFloat64(notifications.WithLabelValues("password_reset", StatusOK))

	IncNotification("password_reset", StatusOK)

	assert.Equal(t, before+1, testutil.ToFloat64(notifications.WithLabelValues("password_reset", StatusOK)))
}
