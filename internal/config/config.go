package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App     AppConfig
	Storage StorageConfig
	Redis   RedisConfig
	Logger  LoggerConfig
	Auth    AuthConfig
	Desk    DeskConfig
}

// AppConfig controls the admin API server.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StorageConfig selects the snapshot backend for the ticket store.
type StorageConfig struct {
	DataFile      string
	PostgresDSN   string
	MaxConns      int32
	MinConns      int32
	RunMigrations bool
}

// RedisConfig holds Redis connection values for interaction dedup.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines admin API authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	OperatorKeyHash       string
	BcryptCost            int
}

// DeskConfig holds the ticket-desk policy knobs.
type DeskConfig struct {
	StaffRoleID          string
	CategoryID           string
	LogVenueID           string
	MaxTicketsPerUser    int
	FinalizeDelaySeconds int
}

const (
	minTicketsPerUser = 1
	maxTicketsPerUser = 10
)

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxTickets := getEnvAsInt("DESK_MAX_TICKETS_PER_USER", 1)
	if maxTickets < minTicketsPerUser {
		maxTickets = minTicketsPerUser
	}
	if maxTickets > maxTicketsPerUser {
		maxTickets = maxTicketsPerUser
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-desk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Storage: StorageConfig{
			DataFile:      getEnv("STORAGE_DATA_FILE", "database.json"),
			PostgresDSN:   os.Getenv("POSTGRES_DSN"),
			MaxConns:      int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:      int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations: getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			OperatorKeyHash:       os.Getenv("AUTH_OPERATOR_KEY_HASH"),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Desk: DeskConfig{
			StaffRoleID:          os.Getenv("DESK_STAFF_ROLE_ID"),
			CategoryID:           os.Getenv("DESK_CATEGORY_ID"),
			LogVenueID:           os.Getenv("DESK_LOG_VENUE_ID"),
			MaxTicketsPerUser:    maxTickets,
			FinalizeDelaySeconds: getEnvAsInt("DESK_FINALIZE_DELAY_SECONDS", 8),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// FinalizeDelay returns how long to wait before deleting a finalized venue.
func (d DeskConfig) FinalizeDelay() time.Duration {
	if d.FinalizeDelaySeconds <= 0 {
		return 8 * time.Second
	}
	return time.Duration(d.FinalizeDelaySeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
