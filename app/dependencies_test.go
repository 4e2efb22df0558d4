package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/calendar-api/config"
	"github.com/upb/calendar-api/internal/auth"
	"github.com/upb/calendar-api/repositories/postgres"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestNewDependenciesWithDB(t *testing.T) {
	t.Run("wires every component", func(t *testing.T) {
		deps, mock := newTestDependencies(t)

		assert.NotNil(t, deps.Config)
		assert.NotNil(t, deps.DB)
		assert.NotNil(t, deps.Logger)

		assert.NotNil(t, deps.Users)
		assert.NotNil(t, deps.Events)
		assert.NotNil(t, deps.TxManager)

		assert.NotNil(t, deps.Tokens)
		assert.NotNil(t, deps.Revocations)
		assert.NotNil(t, deps.Hasher)
		assert.NotNil(t, deps.AuthMiddleware)
		assert.NotNil(t, deps.BodyReader)
		assert.NotNil(t, deps.AuthService)
		assert.NotNil(t, deps.EventService)

		assert.Equal(t, time.Hour, deps.Tokens.TTL())

		mock.ExpectClose()
		require.NoError(t, deps.Close(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("gate accepts tokens from the wired token service", func(t *testing.T) {
		deps, _ := newTestDependencies(t)

		signed, _, err := deps.Tokens.Issue(auth.Identity{ID: "u1", Email: "u1@example.com"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		verified, _, err := deps.AuthMiddleware.Authenticate(req)
		require.NoError(t, err)
		assert.Equal(t, "u1", verified.Identity.ID)
	})

	t.Run("missing secret", func(t *testing.T) {
		sqlDB, _, err := sqlmock.New()
		require.NoError(t, err)
		defer sqlDB.Close()

		cfg := testConfig()
		cfg.Auth.JWTSecret = ""

		deps, err := NewDependenciesWithDB(cfg, postgres.WrapDB(sqlDB, zap.NewNop()), zap.NewNop())
		assert.Nil(t, deps)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize auth")
	})
}

func TestNewDependencies_DatabaseUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Host = "127.0.0.1"
	cfg.Database.Port = 1
	cfg.Database.ConnectTimeout = 2 * time.Second

	deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
	assert.Nil(t, deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize database")
}

func TestDependencies_Janitor(t *testing.T) {
	deps, mock := newTestDependencies(t)
	deps.Config.Auth.RevocationPruneInterval = 10 * time.Millisecond

	now := time.Now()
	deps.Revocations.WithClock(func() time.Time { return now.Add(2 * time.Hour) })
	deps.Revocations.Revoke("expired-token", now.Add(time.Hour))
	require.Equal(t, 1, deps.Revocations.Len())

	deps.StartBackground(context.Background())
	deps.StartBackground(context.Background())

	assert.Eventually(t, func() bool { return deps.Revocations.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	mock.ExpectClose()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, deps.Close(ctx))
}

// Test helpers

func newTestDependencies(t *testing.T) (*Dependencies, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	logger := zaptest.NewLogger(t)
	deps, err := NewDependenciesWithDB(testConfig(), postgres.WrapDB(sqlDB, logger), logger)
	require.NoError(t, err)
	return deps, mock
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  30 * time.Second,
		},
		Database: config.DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "calendar",
			Database:        "calendar_test",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Auth: config.AuthConfig{
			JWTSecret:               "0123456789abcdef0123456789abcdef",
			Issuer:                  "calendar-api",
			TokenTTL:                time.Hour,
			BcryptCost:              4,
			RevocationPruneInterval: time.Minute,
		},
		Body: config.BodyConfig{
			ReadTimeout: 5 * time.Second,
			MaxBytes:    1 << 20,
		},
		Observability: config.ObservabilityConfig{
			LogLevel:  "debug",
			LogFormat: "json",
		},
	}
}
