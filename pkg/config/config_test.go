package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 5, cfg.Admission.MaxAttempts)
	assert.Equal(t, 20*time.Millisecond, cfg.Admission.RetryBaseDelay)
	assert.Equal(t, 10*time.Minute, cfg.TermEnd.LockTTL)
	assert.Nil(t, cfg.Kafka.Brokers)
	assert.False(t, cfg.Redis.Enabled)
	assert.Empty(t, cfg.CORS.AllowedOrigins)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("DB_DRIVER", "MEMORY")
	v.Set("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,,")
	v.Set("ADMISSION_RETRY_BASE_DELAY", "not-a-duration")
	v.Set("CORS_ALLOWED_ORIGINS", "https://registrar.example.edu/")

	cfg := fromViper(v)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 20*time.Millisecond, cfg.Admission.RetryBaseDelay)
	assert.Equal(t, []string{"https://registrar.example.edu/"}, cfg.CORS.AllowedOrigins)
}
