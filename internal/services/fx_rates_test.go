package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/procurepay/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newFXFixture(t *testing.T, policy config.MissingFXRatePolicy) (*FXRateService, sqlmock.Sqlmock, redismock.ClientMock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	redisClient, redisMock := redismock.NewClientMock()
	service := NewFXRateService(db, redisClient, &config.SettlementConfig{
		ReferenceCurrency:   "USD",
		MissingFXRatePolicy: policy,
		FXCacheTTL:          10 * time.Minute,
	}, zap.NewNop())
	return service, mock, redisMock
}

func TestFXRateService_Rates(t *testing.T) {
	ctx := context.Background()

	t.Run("reference currency needs no lookup", func(t *testing.T) {
		service, mock, redisMock := newFXFixture(t, config.FXStrict)

		rates, err := service.Rates(ctx, nil, []string{"usd", "USD"})
		require.NoError(t, err)
		assert.True(t, rates["USD"].Equal(dec("1")))
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("cache hit skips the database", func(t *testing.T) {
		service, mock, redisMock := newFXFixture(t, config.FXStrict)
		redisMock.ExpectGet("fx:USD:EUR").SetVal("1.0837")

		rates, err := service.Rates(ctx, nil, []string{"EUR"})
		require.NoError(t, err)
		assert.True(t, rates["EUR"].Equal(dec("1.0837")))
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("cache miss loads from the database and caches", func(t *testing.T) {
		service, mock, redisMock := newFXFixture(t, config.FXStrict)
		redisMock.ExpectGet("fx:USD:EUR").RedisNil()
		redisMock.ExpectGet("fx:USD:GBP").SetVal("1.2654")
		mock.ExpectQuery("SELECT currency, rate FROM fx_rates").
			WithArgs("USD", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"currency", "rate"}).AddRow("EUR", "1.0837"))
		redisMock.ExpectSet("fx:USD:EUR", "1.0837", 10*time.Minute).SetVal("OK")

		rates, err := service.Rates(ctx, nil, []string{"GBP", "eur"})
		require.NoError(t, err)
		assert.True(t, rates["EUR"].Equal(dec("1.0837")))
		assert.True(t, rates["GBP"].Equal(dec("1.2654")))
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("strict policy rejects missing rates", func(t *testing.T) {
		service, mock, redisMock := newFXFixture(t, config.FXStrict)
		redisMock.ExpectGet("fx:USD:JPY").RedisNil()
		mock.ExpectQuery("SELECT currency, rate FROM fx_rates").
			WillReturnRows(sqlmock.NewRows([]string{"currency", "rate"}))

		_, err := service.Rates(ctx, nil, []string{"JPY"})
		assert.True(t, errors.Is(err, ErrValidation))
		assert.Contains(t, err.Error(), "JPY")
	})

	t.Run("passthrough policy leaves missing rates out", func(t *testing.T) {
		service, mock, redisMock := newFXFixture(t, config.FXPassthrough)
		redisMock.ExpectGet("fx:USD:JPY").RedisNil()
		mock.ExpectQuery("SELECT currency, rate FROM fx_rates").
			WillReturnRows(sqlmock.NewRows([]string{"currency", "rate"}))

		rates, err := service.Rates(ctx, nil, []string{"JPY"})
		require.NoError(t, err)
		_, ok := rates["JPY"]
		assert.False(t, ok)
	})

	t.Run("non-positive stored rate is rejected", func(t *testing.T) {
		service, mock, redisMock := newFXFixture(t, config.FXPassthrough)
		redisMock.ExpectGet("fx:USD:EUR").RedisNil()
		mock.ExpectQuery("SELECT currency, rate FROM fx_rates").
			WillReturnRows(sqlmock.NewRows([]string{"currency", "rate"}).AddRow("EUR", "0"))

		_, err := service.Rates(ctx, nil, []string{"EUR"})
		assert.True(t, errors.Is(err, ErrValidation))
	})

	t.Run("cache outage falls back to the database", func(t *testing.T) {
		service, mock, redisMock := newFXFixture(t, config.FXStrict)
		redisMock.ExpectGet("fx:USD:EUR").SetErr(errors.New("connection refused"))
		mock.ExpectQuery("SELECT currency, rate FROM fx_rates").
			WillReturnRows(sqlmock.NewRows([]string{"currency", "rate"}).AddRow("EUR", "1.1"))
		redisMock.ExpectSet("fx:USD:EUR", "1.1", 10*time.Minute).SetErr(errors.New("connection refused"))

		rates, err := service.Rates(ctx, nil, []string{"EUR"})
		require.NoError(t, err)
		assert.True(t, rates["EUR"].Equal(dec("1.1")))
	})
}
