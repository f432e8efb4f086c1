package middlewarectx_test

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/dhanrekha/internal/http/middlewarectx"
	"github.com/magabrotheeeer/dhanrekha/internal/lib/jwt"
)

// Мок для TokenParser
type TokenParserMock struct {
	mock.Mock
}

func (m *TokenParserMock) ParseToken(tokenStr string) (*jwt.CustomClaims, error) {
	args := m.Called(tokenStr)
	claims, _ := args.Get(0).(*jwt.CustomClaims)
	return claims, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestJWTMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		authHeader     string
		mockSetup      func(*TokenParserMock)
		wantStatusCode int
		wantCalled     bool
	}{
		{
			name:           "missing Authorization header",
			mockSetup:      func(*TokenParserMock) {},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "invalid Authorization header prefix",
			authHeader:     "Basic sometoken",
			mockSetup:      func(*TokenParserMock) {},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:       "token invalid",
			authHeader: "Bearer expired",
			mockSetup: func(m *TokenParserMock) {
				m.On("ParseToken", "expired").Return(nil, errors.New("invalid token"))
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:       "valid token",
			authHeader: "Bearer validtoken",
			mockSetup: func(m *TokenParserMock) {
				m.On("ParseToken", "validtoken").Return(&jwt.CustomClaims{UserID: "user-1"}, nil)
			},
			wantStatusCode: http.StatusOK,
			wantCalled:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := new(TokenParserMock)
			tt.mockSetup(parser)

			handlerCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
				userID, ok := middlewarectx.UserIDFromContext(r.Context())
				assert.True(t, ok)
				assert.Equal(t, "user-1", userID)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()

			middlewarectx.JWTMiddleware(parser, newNoopLogger())(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Equal(t, tt.wantCalled, handlerCalled)
			parser.AssertExpectations(t)
		})
	}
}

func TestJWTMiddleware_RealToken(t *testing.T) {
	parser := jwt.NewJWTMaker("test-secret", time.Minute)
	token, err := parser.GenerateToken("user-42")
	assert.NoError(t, err)

	var got string
	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, _ = middlewarectx.UserIDFromContext(r.Context())
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	middlewarectx.JWTMiddleware(parser, newNoopLogger())(next).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "user-42", got)
}

func TestUserIDFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := middlewarectx.UserIDFromContext(req.Context())
	assert.False(t, ok)
}
