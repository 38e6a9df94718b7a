// Package config builds runtime configuration from the environment so main
// stays lean. Scoring weights and policy thresholds have their own file-based
// configuration; this package covers process-level wiring only.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration for the screening service.
type Server struct {
	Addr string

	// PostgresDSN enables the durable decision log store. Empty selects the
	// in-memory store (tests, local development).
	PostgresDSN string

	// RedisURL enables the match-result cache. Empty disables caching.
	RedisURL string

	// KafkaBrokers enables the decision audit event stream. Empty selects
	// the in-process worker sink.
	KafkaBrokers []string
	KafkaTopic   string

	// BatchWorkers bounds concurrent screenings within one batch.
	BatchWorkers int

	// PolicyFile optionally overrides built-in scoring/policy defaults.
	PolicyFile string
}

// RedisConfig carries tuning for the go-redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:         getenv("CHAINSCREEN_ADDR", ":8080"),
		PostgresDSN:  os.Getenv("CHAINSCREEN_POSTGRES_DSN"),
		RedisURL:     os.Getenv("CHAINSCREEN_REDIS_URL"),
		KafkaTopic:   getenv("CHAINSCREEN_KAFKA_TOPIC", "chainscreen.decisions"),
		BatchWorkers: getint("CHAINSCREEN_BATCH_WORKERS", 8),
		PolicyFile:   os.Getenv("CHAINSCREEN_POLICY_FILE"),
	}
	if brokers := os.Getenv("CHAINSCREEN_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

// Redis derives client tuning from the configured URL.
func (s Server) Redis() RedisConfig {
	return RedisConfig{
		URL:          s.RedisURL,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
