package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	CORS          CORSConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Log           LogConfig
	Kafka         KafkaConfig
	Notifications NotificationConfig
	Admission     AdmissionConfig
	TermEnd       TermEndConfig
}

type DatabaseConfig struct {
	Driver        string
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MaxOpenConns  int
	MaxIdleConns  int
	MigrationsDir string
	AutoMigrate   bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type LogConfig struct {
	Level  string
	Format string
}

// KafkaConfig points the notification publisher at a broker set.
type KafkaConfig struct {
	Brokers           []string
	NotificationTopic string
	WriteTimeout      time.Duration
}

// NotificationConfig controls asynchronous notification delivery.
type NotificationConfig struct {
	Enabled bool
	Workers int
	Retries int
}

// AdmissionConfig bounds optimistic-concurrency retries for seat and grade writes.
type AdmissionConfig struct {
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// TermEndConfig tunes the term-end batch.
type TermEndConfig struct {
	LockTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Driver:        strings.ToLower(v.GetString("DB_DRIVER")),
		Host:          v.GetString("DB_HOST"),
		Port:          v.GetInt("DB_PORT"),
		User:          v.GetString("DB_USER"),
		Password:      v.GetString("DB_PASSWORD"),
		Name:          v.GetString("DB_NAME"),
		SSLMode:       v.GetString("DB_SSL_MODE"),
		MaxOpenConns:  v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:  v.GetInt("DB_MAX_IDLE_CONNS"),
		MigrationsDir: v.GetString("MIGRATIONS_DIR"),
		AutoMigrate:   v.GetBool("AUTO_MIGRATE"),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitAndTrim(v.GetString("CORS_ALLOWED_ORIGINS")),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Kafka = KafkaConfig{
		Brokers:           splitAndTrim(v.GetString("KAFKA_BROKERS")),
		NotificationTopic: v.GetString("KAFKA_NOTIFICATION_TOPIC"),
		WriteTimeout:      parseDuration(v.GetString("KAFKA_WRITE_TIMEOUT"), 10*time.Second),
	}

	cfg.Notifications = NotificationConfig{
		Enabled: v.GetBool("ENABLE_NOTIFICATIONS"),
		Workers: v.GetInt("NOTIFY_WORKERS"),
		Retries: v.GetInt("NOTIFY_RETRIES"),
	}

	cfg.Admission = AdmissionConfig{
		MaxAttempts:    v.GetInt("ADMISSION_MAX_ATTEMPTS"),
		RetryBaseDelay: parseDuration(v.GetString("ADMISSION_RETRY_BASE_DELAY"), 20*time.Millisecond),
		RetryMaxDelay:  parseDuration(v.GetString("ADMISSION_RETRY_MAX_DELAY"), 500*time.Millisecond),
	}

	cfg.TermEnd = TermEndConfig{
		LockTTL: parseDuration(v.GetString("TERM_END_LOCK_TTL"), 10*time.Minute),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "registrar")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("AUTO_MIGRATE", false)

	v.SetDefault("CORS_ALLOWED_ORIGINS", "")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_NOTIFICATION_TOPIC", "registrar.notifications")
	v.SetDefault("KAFKA_WRITE_TIMEOUT", "10s")

	v.SetDefault("ENABLE_NOTIFICATIONS", true)
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_RETRIES", 3)

	v.SetDefault("ADMISSION_MAX_ATTEMPTS", 5)
	v.SetDefault("ADMISSION_RETRY_BASE_DELAY", "20ms")
	v.SetDefault("ADMISSION_RETRY_MAX_DELAY", "500ms")

	v.SetDefault("TERM_END_LOCK_TTL", "10m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
