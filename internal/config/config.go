package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

const (
	CredentialsStatic   = "static"
	CredentialsPostgres = "postgres"

	minSecretLen = 32
)

// Config is the process-wide configuration, built once at startup.
type Config struct {
	Port string

	DataFile    string
	UploadDir   string
	DatabaseURL string

	CredentialsSource string
	AdminUsername     string
	AdminPasswordHash string

	JWTSecret string
	TokenTTL  time.Duration

	PlaceholderImage string
	MaxUploadBytes   int64
	LoginRatePerMin  int
	// TrustProxy keys the login limiter on X-Forwarded-For.
	TrustProxy       bool

	LogLevel string
	LogFile  string

	MetricsEnabled bool
	MetricsToken   string
}

// Load reads an optional .env file (or the one named by ENV_FILE) and then the
// process environment. Values already in the environment win over the file.
func Load() (*Config, error) {
	envFile := getenv("ENV_FILE", ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	ttl, err := cast.ToDurationE(getenv("TOKEN_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("TOKEN_TTL: %w", err)
	}
	maxUpload, err := cast.ToInt64E(getenv("MAX_UPLOAD_BYTES", "10485760"))
	if err != nil {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES: %w", err)
	}
	loginRate, err := cast.ToIntE(getenv("LOGIN_RATE_PER_MIN", "5"))
	if err != nil {
		return nil, fmt.Errorf("LOGIN_RATE_PER_MIN: %w", err)
	}
	trustProxy, err := cast.ToBoolE(getenv("TRUST_PROXY", "false"))
	if err != nil {
		return nil, fmt.Errorf("TRUST_PROXY: %w", err)
	}
	metricsOn, err := cast.ToBoolE(getenv("METRICS_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("METRICS_ENABLED: %w", err)
	}

	cfg := &Config{
		Port:              getenv("PORT", "8000"),
		DataFile:          getenv("DATA_FILE", "products.json"),
		UploadDir:         getenv("UPLOAD_DIR", "uploads"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		CredentialsSource: strings.ToLower(getenv("CREDENTIALS_SOURCE", CredentialsStatic)),
		AdminUsername:     getenv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		TokenTTL:          ttl,
		PlaceholderImage:  getenv("PLACEHOLDER_IMAGE", "/uploads/keenboosup.png"),
		MaxUploadBytes:    maxUpload,
		LoginRatePerMin:   loginRate,
		TrustProxy:        trustProxy,
		LogLevel:          getenv("LOG_LEVEL", "info"),
		LogFile:           os.Getenv("LOG_FILE"),
		MetricsEnabled:    metricsOn,
		MetricsToken:      os.Getenv("METRICS_TOKEN"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if len(c.JWTSecret) < minSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET is required and must be at least %d chars", minSecretLen))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}

	switch c.CredentialsSource {
	case CredentialsStatic:
		if c.AdminUsername == "" || c.AdminPasswordHash == "" {
			errs = append(errs, errors.New("ADMIN_USERNAME and ADMIN_PASSWORD_HASH are required for static credentials"))
		}
	case CredentialsPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres credentials"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CREDENTIALS_SOURCE %q", c.CredentialsSource))
	}

	return errors.Join(errs...)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
