package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/registrar-api/pkg/config"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Database:      config.DatabaseConfig{Driver: config.DriverMemory},
		JWT:           config.JWTConfig{Secret: "secret"},
		Notifications: config.NotificationConfig{Enabled: true, Workers: 1, Retries: 1},
		Admission:     config.AdmissionConfig{MaxAttempts: 3, RetryBaseDelay: time.Millisecond, RetryMaxDelay: time.Millisecond},
		TermEnd:       config.TermEndConfig{LockTTL: time.Minute},
	}
}

func TestNewWithMemoryDriver(t *testing.T) {
	a, err := New(memoryConfig(), nil)
	require.NoError(t, err)
	require.NotNil(t, a.Queue)

	ctx := context.Background()
	a.Start(ctx)
	require.NoError(t, a.Store.Ping(ctx))

	for i := 0; i < 3; i++ {
		a.Notifications.Notify(ctx, "stu-1", "hello", "test")
	}
	require.NoError(t, a.Close(ctx))
	assert.Equal(t, int64(3), a.Queue.Stats().Processed)
}

func TestNewWithoutNotificationQueue(t *testing.T) {
	cfg := memoryConfig()
	cfg.Notifications.Enabled = false

	a, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, a.Queue)
	assert.NoError(t, a.Close(context.Background()))
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.Database.Driver = "sqlite"

	_, err := New(cfg, nil)
	assert.ErrorContains(t, err, "unsupported database driver")
}
