package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Транспорты событий.
const (
	TransportStan   = "stan"
	TransportKafka  = "kafka"
	TransportMemory = "memory"
	TransportNone   = "none"
)

// Config — конфигурация процесса; читается один раз при старте.
type Config struct {
	HTTPAddr        string
	DatabaseURL     string
	CatalogSeedFile string
	CatalogCacheTTL time.Duration
	RedisAddr       string

	EventTransport string
	StanClusterID  string
	StanClientID   string
	NatsURL        string
	StanSubject    string
	StanDurable    string

	KafkaBrokers   []string
	KafkaTopic     string
	KafkaGroupID   string
	KafkaBatchSize int
	KafkaBatchWait time.Duration

	EventsDBPath      string
	IngestConcurrency int
	IngestMaxAttempts int
	CallTimeout       time.Duration

	OtelEnabled     bool
	OtelServiceName string
	OtelEndpoint    string
}

// Load читает переменные окружения; service задаёт значения по умолчанию для имени и адреса.
func Load(service string) (Config, error) {
	var (
		cfg Config
		err error
	)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.CatalogSeedFile = os.Getenv("CATALOG_SEED_FILE")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if cfg.CatalogCacheTTL, err = getDuration("CATALOG_CACHE_TTL", 30*time.Second); err != nil {
		return Config{}, err
	}

	cfg.EventTransport = strings.ToLower(getEnv("EVENT_TRANSPORT", TransportStan))
	switch cfg.EventTransport {
	case TransportStan, TransportKafka, TransportMemory, TransportNone:
	default:
		return Config{}, fmt.Errorf("config: unknown EVENT_TRANSPORT %q", cfg.EventTransport)
	}
	cfg.StanClusterID = getEnv("STAN_CLUSTER_ID", "orders-cluster")
	cfg.StanClientID = getEnv("STAN_CLIENT_ID", fmt.Sprintf("%s-%d", service, time.Now().UnixNano()))
	cfg.NatsURL = getEnv("NATS_URL", "nats://localhost:4223")
	cfg.StanSubject = getEnv("STAN_SUBJECT", "order-events")
	cfg.StanDurable = getEnv("STAN_DURABLE", "order-events-ingestor")

	cfg.KafkaBrokers = splitList(getEnv("KAFKA_BROKERS", "localhost:9092"))
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", "order-events")
	cfg.KafkaGroupID = getEnv("KAFKA_GROUP_ID", "order-events-ingestor")
	if cfg.KafkaBatchSize, err = getInt("KAFKA_BATCH_SIZE", 10); err != nil {
		return Config{}, err
	}
	if cfg.KafkaBatchWait, err = getDuration("KAFKA_BATCH_WAIT", time.Second); err != nil {
		return Config{}, err
	}

	cfg.EventsDBPath = getEnv("EVENTS_DB_PATH", "./data/events.db")
	if cfg.IngestConcurrency, err = getInt("INGEST_CONCURRENCY", 4); err != nil {
		return Config{}, err
	}
	if cfg.IngestMaxAttempts, err = getInt("INGEST_MAX_ATTEMPTS", 5); err != nil {
		return Config{}, err
	}
	if cfg.CallTimeout, err = getDuration("CALL_TIMEOUT", 3*time.Second); err != nil {
		return Config{}, err
	}

	cfg.OtelEnabled = getEnv("OTEL_ENABLED", "false") == "true"
	cfg.OtelServiceName = getEnv("OTEL_SERVICE_NAME", service)
	cfg.OtelEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")

	if cfg.KafkaBatchSize < 1 || cfg.IngestConcurrency < 1 || cfg.IngestMaxAttempts < 1 {
		return Config{}, fmt.Errorf("config: KAFKA_BATCH_SIZE, INGEST_CONCURRENCY and INGEST_MAX_ATTEMPTS must be positive")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
