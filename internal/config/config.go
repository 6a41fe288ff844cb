package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

const devSecret = "supersecret-dev-key"

type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string // sqlite|pgx|postgres
	DBDSN    string

	AuthSecret  string
	TokenTTL    time.Duration
	TokenIssuer string

	// CatalogAdminOnly restricts topic/question writes to admins.
	CatalogAdminOnly bool

	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOrigins []string

	LogLevel  string
	LogFormat string // text|json

	RequestTimeout time.Duration
}

// Load reads an optional .env file and then builds the config from the
// process environment. Values already set in the environment win.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load env file: %w", err)
	}
	cfg := FromEnv()
	return cfg, cfg.Validate()
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeDev
	}
	secret := os.Getenv("AUTH_HMAC_SECRET")
	if secret == "" && mode == ModeDev {
		secret = devSecret
	}
	return Config{
		Mode:             mode,
		HTTPAddr:         envOr("HTTP_ADDR", ":8080"),
		DBDriver:         envOr("DB_DRIVER", "sqlite"),
		DBDSN:            envOr("DB_DSN", ""),
		AuthSecret:       secret,
		TokenTTL:         envDuration("TOKEN_TTL", 15*time.Minute),
		TokenIssuer:      envOr("TOKEN_ISSUER", "quizd"),
		CatalogAdminOnly: envBool("CATALOG_ADMIN_ONLY", false),
		AdminUser:        os.Getenv("ADMIN_USERNAME"),
		AdminPassHash:    os.Getenv("ADMIN_PASSWORD_HASH"),
		CORSOrigins:      csvOr("CORS_ORIGINS", "http://localhost:3000"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		LogFormat:        envOr("LOG_FORMAT", "text"),
		RequestTimeout:   envDuration("REQUEST_TIMEOUT", 30*time.Second),
	}
}

// Validate reports every missing or malformed value at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Mode {
	case ModeDev, ModeProd:
	default:
		errs = append(errs, fmt.Errorf("MODE must be dev or prod, got %q", c.Mode))
	}
	switch c.DBDriver {
	case "sqlite", "pgx", "postgres":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be sqlite, pgx or postgres, got %q", c.DBDriver))
	}
	if c.AuthSecret == "" {
		errs = append(errs, errors.New("AUTH_HMAC_SECRET is required"))
	}
	if c.Mode == ModeProd && c.AuthSecret == devSecret {
		errs = append(errs, errors.New("AUTH_HMAC_SECRET must not be the dev default in prod"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if (c.AdminUser == "") != (c.AdminPassHash == "") {
		errs = append(errs, errors.New("ADMIN_USERNAME and ADMIN_PASSWORD_HASH must be set together"))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return -1
	}
	return d
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
