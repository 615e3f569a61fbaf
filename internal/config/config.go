package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBDriver       string // "mysql" or "sqlite"
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	DBPath         string // sqlite file path
	SessionSecret  string // secret used to sign session cookies
	SessionTTL     time.Duration
	BcryptCost     int    // bcrypt cost for password hashing
	StaticDir      string // root of uploaded photos and lot images
	MaxUploadBytes int64
	AMQPURL        string // empty disables domain events
}

// Load reads an optional .env file and then the process environment.  It
// never exits: every missing required variable is collected into the
// returned error.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           envStr("APP_PORT", "8080"),
		DBDriver:       strings.ToLower(envStr("DB_DRIVER", "mysql")),
		DBUser:         os.Getenv("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         envStr("DB_HOST", "localhost"),
		DBPort:         envStr("DB_PORT", "3306"),
		DBName:         os.Getenv("DB_NAME"),
		DBPath:         envStr("DB_PATH", "auction.db"),
		SessionSecret:  os.Getenv("SESSION_SECRET"),
		SessionTTL:     time.Duration(envInt("SESSION_TTL_HOURS", 168)) * time.Hour,
		BcryptCost:     envInt("BCRYPT_COST", 10),
		StaticDir:      envStr("STATIC_DIR", "static"),
		MaxUploadBytes: int64(envInt("MAX_UPLOAD_BYTES", 10<<20)),
		AMQPURL:        amqpURL(),
	}
	return cfg, cfg.Validate()
}

// Validate reports every missing or inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case "mysql":
		if c.DBUser == "" {
			errs = append(errs, missing("DB_USER"))
		}
		if c.DBName == "" {
			errs = append(errs, missing("DB_NAME"))
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	if c.SessionSecret == "" {
		errs = append(errs, missing("SESSION_SECRET"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("invalid BCRYPT_COST %d", c.BcryptCost))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL_HOURS must be positive"))
	}
	return errors.Join(errs...)
}

func missing(key string) error { return fmt.Errorf("missing required env var: %s", key) }

func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
