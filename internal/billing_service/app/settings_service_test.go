package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/madrasahportal/golang_services/internal/billing_service/domain"
	coreSmsDomain "github.com/madrasahportal/golang_services/internal/core_sms/domain"
)

type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) Get(ctx context.Context) (*domain.GlobalSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GlobalSettings), args.Error(1)
}

func (m *MockSettingsRepository) Update(ctx context.Context, settings domain.GlobalSettings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

func TestSettingsService_Get(t *testing.T) {
	defaults := domain.GlobalSettings{
		Gateway:       coreSmsDomain.GatewayCredentials{APIKey: "env-key", SecretKey: "env-secret", CallerID: "8801000000000"},
		SupportNumber: "01700000000",
	}

	t.Run("RowOverridesDefaults", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		repo.On("Get", mock.Anything).Return(&domain.GlobalSettings{
			Gateway: coreSmsDomain.GatewayCredentials{APIKey: "db-key", ClientID: "client-7"},
		}, nil)
		got := NewSettingsService(repo, defaults, testLogger()).Get(context.Background())
		assert.Equal(t, "db-key", got.Gateway.APIKey)
		assert.Equal(t, "env-secret", got.Gateway.SecretKey)
		assert.Equal(t, "client-7", got.Gateway.ClientID)
		assert.Equal(t, "01700000000", got.SupportNumber)
	})

	t.Run("MissingRow", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		repo.On("Get", mock.Anything).Return(nil, nil)
		assert.Equal(t, defaults, NewSettingsService(repo, defaults, testLogger()).Get(context.Background()))
	})

	t.Run("ReadError", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		repo.On("Get", mock.Anything).Return(nil, errors.New("timeout"))
		svc := NewSettingsService(repo, defaults, testLogger())
		assert.Equal(t, defaults, svc.Get(context.Background()))
		assert.Equal(t, "01700000000", svc.SupportNumber(context.Background()))
	})
}

func TestSettingsService_Update(t *testing.T) {
	defaults := domain.GlobalSettings{
		Gateway:       coreSmsDomain.GatewayCredentials{APIKey: "env-key", SecretKey: "env-secret"},
		SupportNumber: "01700000000",
	}
	next := domain.GlobalSettings{
		Gateway:       coreSmsDomain.GatewayCredentials{APIKey: "new-key"},
		SupportNumber: "01999999999",
	}

	t.Run("StoresAndReturnsEffectiveSettings", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		repo.On("Update", mock.Anything, next).Return(nil).Once()
		repo.On("Get", mock.Anything).Return(&next, nil).Once()

		got, err := NewSettingsService(repo, defaults, testLogger()).Update(context.Background(), next)
		assert.NoError(t, err)
		assert.Equal(t, "new-key", got.Gateway.APIKey)
		assert.Equal(t, "env-secret", got.Gateway.SecretKey)
		assert.Equal(t, "01999999999", got.SupportNumber)
		repo.AssertExpectations(t)
	})

	t.Run("StoreError", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		dbErr := errors.New("read-only transaction")
		repo.On("Update", mock.Anything, next).Return(dbErr).Once()

		_, err := NewSettingsService(repo, defaults, testLogger()).Update(context.Background(), next)
		assert.ErrorIs(t, err, dbErr)
		repo.AssertNotCalled(t, "Get", mock.Anything)
	})
}
