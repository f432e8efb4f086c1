package register

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/dhanrekha/internal/models"
	authservice "github.com/magabrotheeeer/dhanrekha/internal/services/auth"
)

type AuthServiceMock struct {
	mock.Mock
}

func (m *AuthServiceMock) Register(ctx context.Context, name, email, password string) (*models.AuthResponse, error) {
	args := m.Called(ctx, name, email, password)
	resp, _ := args.Get(0).(*models.AuthResponse)
	return resp, args.Error(1)
}

func TestRegisterHandler_ServeHTTP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		mockSetup      func(*AuthServiceMock)
		wantStatusCode int
		wantBody       string
	}{
		{
			name: "created",
			body: `{"name":"Asha Verma","email":"asha@example.com","password":"secret1"}`,
			mockSetup: func(m *AuthServiceMock) {
				m.On("Register", mock.Anything, "Asha Verma", "asha@example.com", "secret1").
					Return(&models.AuthResponse{Token: "tok", User: models.Profile{ID: "u1"}}, nil)
			},
			wantStatusCode: http.StatusCreated,
			wantBody:       `"token":"tok"`,
		},
		{
			name:           "short password",
			body:           `{"name":"Asha","email":"asha@example.com","password":"123"}`,
			mockSetup:      func(*AuthServiceMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantBody:       "field Password must be at least 6 characters",
		},
		{
			name: "duplicate email",
			body: `{"name":"Asha","email":"asha@example.com","password":"secret1"}`,
			mockSetup: func(m *AuthServiceMock) {
				m.On("Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(nil, authservice.ErrUserExists)
			},
			wantStatusCode: http.StatusConflict,
			wantBody:       "email already registered",
		},
		{
			name: "service error",
			body: `{"name":"Asha","email":"asha@example.com","password":"secret1"}`,
			mockSetup: func(m *AuthServiceMock) {
				m.On("Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(nil, errors.New("boom"))
			},
			wantStatusCode: http.StatusInternalServerError,
			wantBody:       "failed to register user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(AuthServiceMock)
			tt.mockSetup(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			New(logger, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			svc.AssertExpectations(t)
		})
	}
}
