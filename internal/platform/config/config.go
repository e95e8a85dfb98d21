package config

import (
	"os"
	"time"
)

// Server captures process level configuration sourced from the environment.
type Server struct {
	Addr string

	DatabaseURL string
	RedisURL    string

	KafkaBrokers string
	NoticeTopic  string

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// ServiceKeyHash is the bcrypt hash of the onboarding collaborator's key.
	ServiceKeyHash string

	VerifyCacheTTL time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:           getEnv("CARELEDGER_ADDR", ":8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		KafkaBrokers:   os.Getenv("KAFKA_BROKERS"),
		NoticeTopic:    getEnv("NOTICE_TOPIC", "careledger.registry.notices"),
		JWTSigningKey:  getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:      getEnv("JWT_ISSUER", "careledger"),
		JWTAudience:    getEnv("JWT_AUDIENCE", "registry-admin"),
		ServiceKeyHash: os.Getenv("ONBOARDING_SERVICE_KEY_HASH"),
		VerifyCacheTTL: 2 * time.Minute,
	}

	if ttl := os.Getenv("VERIFY_CACHE_TTL"); ttl != "" {
		if duration, err := time.ParseDuration(ttl); err == nil {
			cfg.VerifyCacheTTL = duration
		}
	}

	return cfg
}

// RedisConfig captures Redis pool settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns pool settings suited to the verification read path.
func DefaultRedisConfig(url string) RedisConfig {
	return RedisConfig{
		URL:          url,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
