package config

import (
	"os"
	"strconv"
	"time"

	"marquee/internal/database"
	"marquee/internal/messaging"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	// Secret shared with the session provider that signs user tokens.
	SessionSecret string

	Database      database.Config
	NATS          messaging.Config
	Redis         RedisConfig
	Elasticsearch ElasticsearchConfig
	Jobs          JobsConfig
}

// JobsConfig controls the background jobs that run inside the API process.
type JobsConfig struct {
	StatusRefreshEnabled  bool
	StatusRefreshInterval time.Duration

	RecoveryEnabled  bool
	RecoveryInterval time.Duration
	RecoveryAfter    time.Duration
}

// RedisConfig описывает подключение к Redis/Valkey
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	SettingsTTL time.Duration
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8081"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		SessionSecret: getEnv("SESSION_SECRET", ""),

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "marquee"),
			Password:           getEnv("DB_PASSWORD", "marquee"),
			DBName:             getEnv("DB_NAME", "marquee"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "marquee"),
			ClientID:  getEnv("NATS_CLIENT_ID", "marquee-api"),
		},

		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", "localhost:6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvInt("REDIS_DB", 0),
			SettingsTTL: getEnvDuration("SETTINGS_CACHE_TTL", 5*time.Minute),
		},

		Elasticsearch: LoadElasticsearchConfig(),

		Jobs: JobsConfig{
			StatusRefreshEnabled:  getEnv("STATUS_REFRESH_ENABLED", "true") == "true",
			StatusRefreshInterval: getEnvDuration("STATUS_REFRESH_INTERVAL", 6*time.Hour),

			RecoveryEnabled:  getEnv("RECOVERY_ENABLED", "true") == "true",
			RecoveryInterval: getEnvDuration("RECOVERY_INTERVAL", time.Minute),
			RecoveryAfter:    getEnvDuration("RECOVERY_AFTER", 2*time.Minute),
		},
	}
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
