package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/dhanrekha/internal/models"
	"github.com/magabrotheeeer/dhanrekha/internal/storage/repository"
)

type IncomeRepoMock struct {
	mock.Mock
}

func (m *IncomeRepoMock) CreateIncome(ctx context.Context, in models.Income) (*models.Income, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Income), args.Error(1)
}

func (m *IncomeRepoMock) ListIncomes(ctx context.Context, userID string, p repository.Period) ([]models.Income, error) {
	args := m.Called(ctx, userID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Income), args.Error(1)
}

type InvalidatorMock struct {
	mock.Mock
}

func (m *InvalidatorMock) InvalidatePattern(ctx context.Context, pattern string) error {
	return m.Called(ctx, pattern).Error(0)
}

const userID = "7f1d2c4e-8a3b-4c5d-9e6f-0a1b2c3d4e5f"

func newTestService() (*IncomeService, *IncomeRepoMock, *InvalidatorMock) {
	repo := new(IncomeRepoMock)
	inv := new(InvalidatorMock)
	return NewIncomeService(repo, inv, slog.New(slog.NewTextHandler(io.Discard, nil))), repo, inv
}

func TestIncomeService_Create(t *testing.T) {
	tests := []struct {
		name      string
		req       models.IncomeRequest
		mockSetup func(*IncomeRepoMock, *InvalidatorMock)
		wantErr   error
	}{
		{
			name: "success",
			req:  models.IncomeRequest{Date: "2024-12-01", Amount: 50000, Source: "Salary"},
			mockSetup: func(r *IncomeRepoMock, i *InvalidatorMock) {
				r.On("CreateIncome", mock.Anything, mock.MatchedBy(func(in models.Income) bool {
					return in.UserID == userID && in.Month == 12 && in.Year == 2024 && in.Source == "Salary"
				})).Return(&models.Income{ID: "i1"}, nil)
				i.On("InvalidatePattern", mock.Anything, "summary:"+userID+":*").Return(nil)
			},
		},
		{
			name: "cache failure is not fatal",
			req:  models.IncomeRequest{Date: "2024-12-01", Amount: 10},
			mockSetup: func(r *IncomeRepoMock, i *InvalidatorMock) {
				r.On("CreateIncome", mock.Anything, mock.Anything).Return(&models.Income{ID: "i2"}, nil)
				i.On("InvalidatePattern", mock.Anything, mock.Anything).Return(errors.New("redis down"))
			},
		},
		{
			name:      "zero amount",
			req:       models.IncomeRequest{Date: "2024-12-01", Amount: 0},
			mockSetup: func(*IncomeRepoMock, *InvalidatorMock) {},
			wantErr:   ErrInvalidAmount,
		},
		{
			name:      "bad date",
			req:       models.IncomeRequest{Date: "soon", Amount: 10},
			mockSetup: func(*IncomeRepoMock, *InvalidatorMock) {},
			wantErr:   ErrInvalidDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, inv := newTestService()
			tt.mockSetup(repo, inv)

			got, err := svc.Create(context.Background(), userID, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				repo.AssertNotCalled(t, "CreateIncome", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, got.ID)
			repo.AssertExpectations(t)
			inv.AssertExpectations(t)
		})
	}
}

func TestIncomeService_List(t *testing.T) {
	tests := []struct {
		name   string
		month  int
		year   int
		period repository.Period
	}{
		{name: "both given", month: 12, year: 2024, period: repository.Period{Month: 12, Year: 2024}},
		{name: "only month ignored", month: 12, period: repository.Period{}},
		{name: "only year ignored", year: 2024, period: repository.Period{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newTestService()
			repo.On("ListIncomes", mock.Anything, userID, tt.period).Return([]models.Income{}, nil)

			_, err := svc.List(context.Background(), userID, tt.month, tt.year)
			require.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}

	svc, _, _ := newTestService()
	_, err := svc.List(context.Background(), userID, 14, 2024)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}
