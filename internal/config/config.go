// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port             string
	OriginAllowlist  []string
	StoreDriver      string
	RedisURL         string
	DatabaseURL      string
	SQLitePath       string
	AuthSecret       string
	TokenTTL         time.Duration
	BoardSize        int
	ResubscribeDelay time.Duration
	LogLevel         logrus.Level
	LogJSON          bool
}

// Load reads an optional .env file (missing files are fine) followed by the
// process environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:        getenv("PORT", "8080"),
		StoreDriver: strings.ToLower(getenv("STORE_DRIVER", DriverMemory)),
		RedisURL:    os.Getenv("REDIS_URL"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getenv("SQLITE_PATH", "gomoku.db"),
		AuthSecret:  os.Getenv("AUTH_SECRET"),
		LogJSON:     strings.EqualFold(os.Getenv("LOG_FORMAT"), "json"),
	}
	if v := os.Getenv("ORIGIN_ALLOWLIST"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.OriginAllowlist = append(cfg.OriginAllowlist, o)
			}
		}
	}

	var err error
	if cfg.TokenTTL, err = durationEnv("TOKEN_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ResubscribeDelay, err = durationEnv("RESUBSCRIBE_DELAY", 300*time.Millisecond); err != nil {
		return Config{}, err
	}

	cfg.BoardSize = 15
	if v := os.Getenv("BOARD_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 5 || n%2 == 0 {
			return Config{}, fmt.Errorf("BOARD_SIZE must be an odd integer >= 5, got %q", v)
		}
		cfg.BoardSize = n
	}

	cfg.LogLevel = logrus.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if cfg.LogLevel, err = logrus.ParseLevel(v); err != nil {
			return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}

	switch cfg.StoreDriver {
	case DriverMemory, DriverSQLite:
	case DriverRedis:
		if cfg.RedisURL == "" {
			return Config{}, errors.New("STORE_DRIVER=redis requires REDIS_URL")
		}
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("STORE_DRIVER=postgres requires DATABASE_URL")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	return cfg, nil
}

// ConfigureLogger applies level and format to the standard logrus logger.
func (c Config) ConfigureLogger() {
	logrus.SetLevel(c.LogLevel)
	if c.LogJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
