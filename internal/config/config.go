package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds process configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr string
	// SiteURL is the public base URL the CRM downloads feeds from.
	SiteURL string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	// MigrateOnStart applies pending migrations when the server starts.
	MigrateOnStart    bool

	// RedisAddr stores feed secrets in redis when set; otherwise they live
	// in process memory.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// CRMBaseURL overrides the CRM host, for tests and staging.
	CRMBaseURL string

	RateLimit RateLimitConfig

	// APIToken guards the /api routes. The routes are not registered
	// without one.
	APIToken string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "crmfeed"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		SiteURL:           strings.TrimRight(strings.TrimSpace(getenv("SITE_URL", "http://localhost:8080")), "/"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "crmfeed.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		MigrateOnStart:    getenvBool("DATABASE_MIGRATE_ON_START", false),
		RedisAddr:         strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		RedisDB:           getenvInt("REDIS_DB", 0),
		CRMBaseURL:        strings.TrimRight(strings.TrimSpace(getenv("CRM_BASE_URL", "")), "/"),
		APIToken:          strings.TrimSpace(getenv("API_TOKEN", "")),
		RateLimit: RateLimitConfig{
			Enabled:             getenvBool("RATE_LIMIT_ENABLED", true),
			SyncTriggerRate:     getenvFloat("RATE_LIMIT_SYNC_TRIGGER_RATE", 0.2),
			SyncTriggerBurst:    getenvInt("RATE_LIMIT_SYNC_TRIGGER_BURST", 5),
			FullSyncLockSeconds: getenvInt("RATE_LIMIT_FULL_SYNC_LOCK_SECONDS", 3600),
		},
	}

	return cfg
}

// RateLimitConfig throttles event driven CRM triggers and serializes full
// syncs. Throttling needs REDIS_ADDR; the full sync lock works without it.
type RateLimitConfig struct {
	Enabled bool
	// SyncTriggerRate is the refill rate in triggers per second.
	SyncTriggerRate     float64
	SyncTriggerBurst    int
	FullSyncLockSeconds int
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
