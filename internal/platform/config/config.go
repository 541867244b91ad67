// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full service configuration, parsed from environment
// variables so main stays lean.
type Config struct {
	Addr          string `env:"WARDEN_ADDR" envDefault:":8080"`
	JWTSigningKey string `env:"WARDEN_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`

	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig

	Retention RetentionConfig
	Session   SessionConfig

	Verification VerificationConfig
}

// DatabaseConfig controls the PostgreSQL connection. An empty URL selects the
// in-memory stores (dev/test mode).
type DatabaseConfig struct {
	URL             string        `env:"WARDEN_DATABASE_URL"`
	MaxOpenConns    int           `env:"WARDEN_DATABASE_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"WARDEN_DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"WARDEN_DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// RedisConfig controls the Redis connection. An empty URL disables Redis and
// selects the in-memory session/grant stores.
type RedisConfig struct {
	URL          string        `env:"WARDEN_REDIS_URL"`
	PoolSize     int           `env:"WARDEN_REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"WARDEN_REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"WARDEN_REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"WARDEN_REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WARDEN_REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig controls audit event publishing. Empty seeds disable the outbox
// worker.
type KafkaConfig struct {
	Seeds      []string `env:"WARDEN_KAFKA_SEEDS" envSeparator:","`
	AuditTopic string   `env:"WARDEN_KAFKA_AUDIT_TOPIC" envDefault:"warden.audit.events"`
}

// RetentionConfig controls the account retention lifecycle.
type RetentionConfig struct {
	PersonalMonths int    `env:"WARDEN_RETENTION_PERSONAL_MONTHS" envDefault:"24"`
	BusinessMonths int    `env:"WARDEN_RETENTION_BUSINESS_MONTHS" envDefault:"36"`
	ScanSchedule   string `env:"WARDEN_RETENTION_SCAN_SCHEDULE" envDefault:"0 3 * * *"`
	ScrubSchedule  string `env:"WARDEN_RETENTION_SCRUB_SCHEDULE" envDefault:"0 4 * * *"`
}

// SessionConfig controls session policy defaults and reauthentication grants.
type SessionConfig struct {
	ReauthGrantTTL time.Duration `env:"WARDEN_REAUTH_GRANT_TTL" envDefault:"5m"`
}

// VerificationConfig controls DNS domain verification.
type VerificationConfig struct {
	DNSTimeout time.Duration `env:"WARDEN_VERIFICATION_DNS_TIMEOUT" envDefault:"10s"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config from env: %w", err)
	}
	return cfg, nil
}
