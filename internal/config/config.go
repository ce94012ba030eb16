package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string
	LogLevel    string

	// Database
	DatabaseURL    string
	MigrateOnStart bool

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string
	InstanceID  string

	// Security
	JWTSecret string

	// Scheduling
	MatchmakerInterval     time.Duration
	ChallengeSweepInterval time.Duration
	SessionTickInterval    time.Duration

	// Game Settings
	ChallengeTimeout time.Duration
	StoreTimeout     time.Duration
	DefaultRating    int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Database
		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/arena?sslmode=disable"),
		MigrateOnStart: getEnv("MIGRATE_ON_START", "false") == "true",

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		InstanceID:  getEnv("INSTANCE_ID", hostname()),

		// Security
		JWTSecret: getEnv("JWT_SECRET", "change-me-in-production"),

		// Scheduling
		MatchmakerInterval:     getEnvDuration("MATCHMAKER_INTERVAL", time.Second),
		ChallengeSweepInterval: getEnvDuration("CHALLENGE_SWEEP_INTERVAL", 500*time.Millisecond),
		SessionTickInterval:    getEnvDuration("SESSION_TICK_INTERVAL", time.Second/60),

		// Game Settings
		ChallengeTimeout: getEnvDuration("CHALLENGE_TIMEOUT", 5*time.Second),
		StoreTimeout:     getEnvDuration("STORE_TIMEOUT", 2*time.Second),
		DefaultRating:    getEnvInt("DEFAULT_RATING", 1500),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "arena"
	}
	return name
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
