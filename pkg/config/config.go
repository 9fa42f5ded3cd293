package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	HTTPAddr       string
	MigrationsPath string
	LogLevel       string

	// DATABASE_URL wins over the DB_* parts when set.
	DatabaseURL string

	DB DBConfig

	App AppConfig

	Shopware ShopwareConfig

	// RedisURL enables the shared token cache, e.g. redis://localhost:6379/0.
	// Empty keeps tokens in process memory.
	RedisURL string
}

type DBConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

// AppConfig identifies this app towards shops. Name and Secret must match the
// values in the app manifest installed in the shop.
type AppConfig struct {
	Name   string
	Secret string

	// URL is the externally reachable base URL of this backend; the confirmation
	// URL handed out during registration is derived from it.
	URL string
}

type ShopwareConfig struct {
	APIVersion  int
	HTTPTimeout time.Duration
	TokenTTL    time.Duration
}

func Load() Config {
	// Convenience for local dev: load variables from .env if present.
	// In production, rely on real environment variables.
	_ = godotenv.Load()

	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			httpAddr = ":" + port
		} else {
			httpAddr = ":8081"
		}
	}

	return Config{
		AppEnv:         env("APP_ENV", "dev"),
		HTTPAddr:       httpAddr,
		MigrationsPath: os.Getenv("MIGRATIONS_PATH"),
		LogLevel:       env("LOG_LEVEL", "info"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DB: DBConfig{
			Host:     env("DB_HOST", "localhost"),
			Port:     env("DB_PORT", "5432"),
			Name:     env("DB_NAME", "appsystem"),
			User:     env("DB_USER", "appsystem"),
			Password: env("DB_PASSWORD", "appsystem"),
			SSLMode:  env("DB_SSLMODE", "disable"),
		},
		App: AppConfig{
			Name:   os.Getenv("APP_NAME"),
			Secret: os.Getenv("APP_SECRET"),
			URL:    strings.TrimRight(env("APP_URL", "http://localhost:8081"), "/"),
		},
		Shopware: ShopwareConfig{
			APIVersion:  envInt("SHOPWARE_API_VERSION", 3),
			HTTPTimeout: envDuration("SHOPWARE_HTTP_TIMEOUT", 15*time.Second),
			TokenTTL:    envDuration("TOKEN_CACHE_TTL", 10*time.Minute),
		},
		RedisURL: os.Getenv("REDIS_URL"),
	}
}

// ConfirmationURL is where shops post their API keys after registering.
func (c Config) ConfirmationURL() string {
	return c.App.URL + "/registration/confirm"
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(env(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(env(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
