package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server settings.
type Config struct {
	Port                int
	DBPath              string
	RedisAddr           string // empty selects the in-memory quote cache
	QuoteCacheTTL       time.Duration
	OverdueScanInterval time.Duration
	LogLevel            string
	LogFormat           string
	CORSAllowedOrigins  []string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first if present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:                getEnvInt("PORT", 8080),
		DBPath:              getEnvString("DB_PATH", "microloan.db"),
		RedisAddr:           getEnvString("REDIS_ADDR", ""),
		QuoteCacheTTL:       getEnvDuration("QUOTE_CACHE_TTL", 10*time.Minute),
		OverdueScanInterval: getEnvDuration("OVERDUE_SCAN_INTERVAL", time.Hour),
		LogLevel:            getEnvString("LOG_LEVEL", "info"),
		LogFormat:           getEnvString("LOG_FORMAT", "text"),
		CORSAllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
	}
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
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

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
