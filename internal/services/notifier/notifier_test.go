package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/dhanrekha/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/dhanrekha/internal/models"
)

type MailerMock struct {
	mock.Mock
}

func (m *MailerMock) Send(ctx context.Context, email Email) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

var fixedNow = time.Date(2024, time.December, 10, 12, 0, 0, 0, time.UTC)

func newTestService(mailer Mailer) *NotifierService {
	svc := NewNotifierService(mailer, "https://dhanrekha.example/", slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func encode(t *testing.T, event models.PasswordResetEvent) []byte {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return body
}

func TestHandlePasswordReset_SendsEmail(t *testing.T) {
	mailer := new(MailerMock)
	mailer.On("Send", mock.Anything, mock.MatchedBy(func(e Email) bool {
		return e.To == "asha@example.com" &&
			e.Subject == "Password Reset Request" &&
			bytes.Contains([]byte(e.Body), []byte("Hello Asha,")) &&
			bytes.Contains([]byte(e.Body), []byte("https://dhanrekha.example/reset-password.html?token=abc123")) &&
			bytes.Contains([]byte(e.Body), []byte("valid for 5 minutes"))
	})).Return(nil).Once()

	svc := newTestService(mailer)
	err := svc.HandlePasswordReset(context.Background(), encode(t, models.PasswordResetEvent{
		UserID:    "u1",
		Email:     "asha@example.com",
		Name:      "Asha",
		Token:     "abc123",
		ExpiresAt: fixedNow.Add(5 * time.Minute),
	}))

	require.NoError(t, err)
	mailer.AssertExpectations(t)
}

func TestHandlePasswordReset_Dropped(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{name: "malformed json", body: []byte("{not json")},
		{name: "missing token", body: []byte(`{"email":"asha@example.com"}`)},
		{name: "missing email", body: []byte(`{"token":"abc"}`)},
		{
			name: "expired",
			body: []byte(`{"email":"asha@example.com","token":"abc","expires_at":"2024-12-10T11:00:00Z"}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := new(MailerMock)
			svc := newTestService(mailer)

			err := svc.HandlePasswordReset(context.Background(), tt.body)

			require.Error(t, err)
			assert.ErrorIs(t, err, rabbitmq.ErrDropMessage)
			mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		})
	}
}

func TestHandlePasswordReset_MailerFailureIsRetried(t *testing.T) {
	mailer := new(MailerMock)
	mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()

	svc := newTestService(mailer)
	err := svc.HandlePasswordReset(context.Background(), encode(t, models.PasswordResetEvent{
		Email: "asha@example.com",
		Token: "abc",
	}))

	require.Error(t, err)
	assert.NotErrorIs(t, err, rabbitmq.ErrDropMessage)
}

func TestResetLink_EscapesToken(t *testing.T) {
	svc := newTestService(new(MailerMock))

	assert.Equal(t, "https://dhanrekha.example/reset-password.html?token=a%2Bb", svc.ResetLink("a+b"))
}

func TestLogMailer_Send(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMailer(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, m.Send(context.Background(), Email{To: "asha@example.com", Subject: "Password Reset Request"}))
	assert.Contains(t, buf.String(), "to=asha@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, m.Send(ctx, Email{}))
}
