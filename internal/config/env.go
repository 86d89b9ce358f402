package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	Port            string
	StoreBackend    string
	DatabaseURL     string
	RedisURL        string
	JWTSecret       string
	BackendURL      string
	BackendTimeout  time.Duration
	SectionDelay    time.Duration
	AdminPhraseHash string
	AdminPhraseLen  int
	PublicURL       string
	AllowedOrigins  []string
	SessionTTL      time.Duration
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		StoreBackend:    strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisURL:        getEnv("REDIS_URL", ""),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		BackendURL:      getEnv("BACKEND_URL", "http://localhost:3001"),
		BackendTimeout:  time.Duration(getEnvInt("BACKEND_TIMEOUT", 120)) * time.Second,
		SectionDelay:    time.Duration(getEnvInt("SECTION_DELAY_MS", 1000)) * time.Millisecond,
		AdminPhraseHash: getEnv("ADMIN_PHRASE_HASH", ""),
		AdminPhraseLen:  getEnvInt("ADMIN_PHRASE_LENGTH", 0),
		PublicURL:       getEnv("PUBLIC_URL", "https://aipomochnik.ru"),
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		SessionTTL:      time.Duration(getEnvInt("SESSION_TTL_MINUTES", 720)) * time.Minute,
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL not set")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL not set")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET not set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("env value is not an int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
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
