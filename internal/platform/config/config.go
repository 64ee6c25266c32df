package config

import (
	"os"
	"strings"
	"time"
)

// Config captures service level configuration. Every external system the
// service talks to is optional in development: absent settings select the
// in-memory fallbacks wired in cmd/server.
type Config struct {
	Addr          string
	JWTSigningKey string

	// PostgresDSN selects the durable record/audit stores when set.
	PostgresDSN string

	// Redis fans application change notices out across instances.
	Redis RedisConfig

	// Kafka carries the audit outbox. Empty brokers disable publishing.
	KafkaBrokers []string
	AuditTopic   string

	// MinIO object storage for documents and signature images.
	Minio MinioConfig

	// SparshEmail is the disbursement system inbox certificates are sent to.
	SparshEmail string
}

// RedisConfig mirrors the subset of go-redis options we tune.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MinioConfig holds object storage connection settings.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:          getenv("LIFECERT_ADDR", ":8080"),
		JWTSigningKey: getenv("LIFECERT_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresDSN:   os.Getenv("LIFECERT_POSTGRES_DSN"),
		AuditTopic:    getenv("LIFECERT_AUDIT_TOPIC", "audit.events"),
		SparshEmail:   getenv("LIFECERT_SPARSH_EMAIL", "alc@sparsh.gov.in"),
		Redis: RedisConfig{
			URL:          os.Getenv("LIFECERT_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Minio: MinioConfig{
			Endpoint:  os.Getenv("LIFECERT_MINIO_ENDPOINT"),
			AccessKey: os.Getenv("LIFECERT_MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("LIFECERT_MINIO_SECRET_KEY"),
			Bucket:    getenv("LIFECERT_MINIO_BUCKET", "lifecert-documents"),
			UseSSL:    os.Getenv("LIFECERT_MINIO_USE_SSL") == "true",
		},
	}

	if brokers := os.Getenv("LIFECERT_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
