package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTPPort           string        `envconfig:"HTTP_PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	MaxRequestBodySize int64         `envconfig:"MAX_REQUEST_BODY_SIZE" default:"1048576"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	Backend  Backend
	Redis    Redis
	Postgres Postgres
	Kafka    Kafka
}

// Backend is the MegaMartLanka REST API.
type Backend struct {
	BaseURL         string        `envconfig:"BACKEND_BASE_URL" default:"http://localhost:8080/api/v1"`
	Timeout         time.Duration `envconfig:"BACKEND_TIMEOUT" default:"5s"`
	BreakerFailures uint32        `envconfig:"BACKEND_BREAKER_FAILURES" default:"5"`
	BreakerTimeout  time.Duration `envconfig:"BACKEND_BREAKER_TIMEOUT" default:"30s"`
}

type Redis struct {
	Addr        string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password    string        `envconfig:"REDIS_PASSWORD"`
	DB          int           `envconfig:"REDIS_DB" default:"0"`
	CatalogTTL  time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"5m"`
	SessionName string        `envconfig:"SESSION_NAME" default:"default"`
}

type Postgres struct {
	Host           string `envconfig:"DB_HOST" default:"localhost"`
	Port           int    `envconfig:"DB_PORT" default:"5432"`
	User           string `envconfig:"DB_USER" default:"postgres"`
	Password       string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName         string `envconfig:"DB_NAME" default:"storefront"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"./internal/journal/migrations"`
}

type Kafka struct {
	Brokers []string      `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string        `envconfig:"KAFKA_TOPIC" default:"storefront-submissions"`
	Tick    time.Duration `envconfig:"OUTBOX_TICK" default:"1s"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
