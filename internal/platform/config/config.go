package config

import (
	"os"
	"strings"
)

// Config captures the wiring knobs for an audited-save deployment.
type Config struct {
	// Driver is "postgres" or "sqlite".
	Driver string
	// DSN is the database connection string.
	DSN string
	// RedisURL enables the session-based actor resolver when non-empty.
	RedisURL string
	// SessionPrefix namespaces session keys in Redis.
	SessionPrefix string
	// KafkaBrokers enables the Kafka audit sink when non-empty.
	KafkaBrokers []string
	// KafkaTopic is the audit topic name.
	KafkaTopic string
	// StrictVerification makes tracking inconsistencies fatal.
	StrictVerification bool
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	driver := os.Getenv("CHRONICLE_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	dsn := os.Getenv("CHRONICLE_DSN")
	if dsn == "" {
		dsn = ":memory:"
	}
	topic := os.Getenv("CHRONICLE_KAFKA_TOPIC")
	if topic == "" {
		topic = "chronicle.audit"
	}
	prefix := os.Getenv("CHRONICLE_SESSION_PREFIX")
	if prefix == "" {
		prefix = "session:"
	}

	var brokers []string
	if raw := os.Getenv("CHRONICLE_KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	return Config{
		Driver:             driver,
		DSN:                dsn,
		RedisURL:           os.Getenv("CHRONICLE_REDIS_URL"),
		SessionPrefix:      prefix,
		KafkaBrokers:       brokers,
		KafkaTopic:         topic,
		StrictVerification: os.Getenv("CHRONICLE_STRICT") == "true",
	}
}
