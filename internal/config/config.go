package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
)

// Buses de eventos soportados.
const (
	BusMemory = "memory"
	BusKafka  = "kafka"
	BusNATS   = "nats"
)

type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPPort string `envconfig:"HTTP_PORT" default:"8080"`

	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	DatabaseURL string `envconfig:"DATABASE_URL" default:"./placementlab.db"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`

	RedisAddr string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	CacheTTL  time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	EventBus     string   `envconfig:"EVENT_BUS" default:"memory"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaGroupID string   `envconfig:"KAFKA_GROUP_ID" default:"placementlab-dispatcher"`
	NATSURL      string   `envconfig:"NATS_URL" default:"nats://localhost:4222"`

	MongoURI      string `envconfig:"MONGO_URI"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"placementlab"`

	ClickHouseAddr     string `envconfig:"CLICKHOUSE_ADDR"`
	ClickHouseDatabase string `envconfig:"CLICKHOUSE_DATABASE" default:"default"`
	ClickHouseUser     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	ClickHousePassword string `envconfig:"CLICKHOUSE_PASSWORD"`

	StorageDir  string        `envconfig:"STORAGE_DIR" default:"./data/files"`
	FileBaseURL string        `envconfig:"FILE_BASE_URL"`
	S3Bucket    string        `envconfig:"S3_BUCKET"`
	S3Region    string        `envconfig:"S3_REGION" default:"us-east-1"`
	S3Endpoint  string        `envconfig:"S3_ENDPOINT"`
	FileURLTTL  time.Duration `envconfig:"FILE_URL_TTL" default:"15m"`

	OutboxPeriod    time.Duration `envconfig:"OUTBOX_PERIOD" default:"1s"`
	OutboxLimit     int           `envconfig:"OUTBOX_LIMIT" default:"100"`
	OutboxLease     time.Duration `envconfig:"OUTBOX_LEASE" default:"30s"`
	OutboxRetention time.Duration `envconfig:"OUTBOX_RETENTION" default:"168h"`

	WorkerBatchSize     int           `envconfig:"WORKER_BATCH_SIZE" default:"10"`
	WorkerPollInterval  time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"1s"`
	WorkerVisibility    time.Duration `envconfig:"WORKER_VISIBILITY_TIMEOUT" default:"30s"`
	WorkerMaxReceives   int           `envconfig:"WORKER_MAX_RECEIVES" default:"3"`
	WorkerRetryBase     time.Duration `envconfig:"WORKER_RETRY_BASE_DELAY" default:"1s"`
	WorkerRetryMaxDelay time.Duration `envconfig:"WORKER_RETRY_MAX_DELAY" default:"1m"`

	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"100"`

	IdempotencyBackend   string        `envconfig:"IDEMPOTENCY_BACKEND" default:"sql"`
	IdempotencyRetention time.Duration `envconfig:"IDEMPOTENCY_RETENTION" default:"24h"`
	IdempotencyLease     time.Duration `envconfig:"IDEMPOTENCY_LEASE" default:"30s"`

	ConsistencyTier string `envconfig:"CONSISTENCY_TIER" default:"cp"`
}

// LoadConfig lee la configuración del entorno y aplica los valores por defecto.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.EventBus = strings.ToLower(c.EventBus)
	switch c.EventBus {
	case BusMemory, BusKafka, BusNATS:
	default:
		return fmt.Errorf("EVENT_BUS must be one of memory, kafka, nats: got %q", c.EventBus)
	}
	switch c.IdempotencyBackend {
	case "sql", "redis":
	default:
		return fmt.Errorf("IDEMPOTENCY_BACKEND must be sql or redis: got %q", c.IdempotencyBackend)
	}
	if _, err := c.Tier(); err != nil {
		return err
	}
	if c.WorkerMaxReceives < 1 {
		return fmt.Errorf("WORKER_MAX_RECEIVES must be at least 1")
	}
	return nil
}

// Tier devuelve el tier de consistencia de los command handlers.
func (c *Config) Tier() (sharedDomain.ConsistencyTier, error) {
	return sharedDomain.ParseConsistencyTier(c.ConsistencyTier)
}
