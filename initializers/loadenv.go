package initializers

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every setting the service reads from the environment.
type Config struct {
	Port    string
	AppEnv  string
	LogJSON bool

	DBDriver    string // sqlite or postgres
	DatabaseURL string
	MigrateDir  string

	MockFailureRate float64
	MockDelayScale  float64

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string

	ElasticsearchURL string
	SearchIndex      string

	ScanInterval time.Duration

	GlobalRPS   int
	GlobalBurst int
	StrictRPS   int
	StrictBurst int

	// CORSOrigins lists allowed browser origins; empty allows any.
	CORSOrigins []string
}

// LoadEnv loads a .env file when one exists. A missing file is not an error;
// the process environment is used as-is.
func LoadEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// LoadConfig reads Config from the environment, applying defaults for anything unset.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:             getenv("PORT", "8080"),
		AppEnv:           getenv("APP_ENV", "development"),
		DBDriver:         getenv("DB_DRIVER", "sqlite"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		MigrateDir:       getenv("MIGRATIONS_DIR", "file://db/migrations"),
		S3Bucket:         getenv("S3_BUCKET", "cntrl-comply-documents"),
		S3Region:         getenv("S3_REGION", "ap-southeast-1"),
		S3Endpoint:       os.Getenv("S3_ENDPOINT"),
		S3AccessKey:      os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:      os.Getenv("S3_SECRET_KEY"),
		S3PublicURL:      os.Getenv("S3_PUBLIC_URL"),
		ElasticsearchURL: os.Getenv("ELASTICSEARCH_URL"),
		SearchIndex:      getenv("SEARCH_INDEX", "regulatory-documents"),
	}

	var err error
	if cfg.LogJSON, err = getBool("LOG_JSON", cfg.AppEnv == "production"); err != nil {
		return Config{}, err
	}
	if cfg.MockFailureRate, err = getFloat("MOCK_FAILURE_RATE", 0.05); err != nil {
		return Config{}, err
	}
	if cfg.MockFailureRate < 0 || cfg.MockFailureRate > 1 {
		return Config{}, fmt.Errorf("MOCK_FAILURE_RATE must be within [0,1], got %v", cfg.MockFailureRate)
	}
	if cfg.MockDelayScale, err = getFloat("MOCK_DELAY_SCALE", 1); err != nil {
		return Config{}, err
	}
	if cfg.MockDelayScale < 0 {
		return Config{}, fmt.Errorf("MOCK_DELAY_SCALE must not be negative")
	}
	if cfg.ScanInterval, err = getDuration("SCAN_INTERVAL", 0); err != nil {
		return Config{}, err
	}
	if cfg.GlobalRPS, err = getInt("RATE_LIMIT_RPS", 20); err != nil {
		return Config{}, err
	}
	if cfg.GlobalBurst, err = getInt("RATE_LIMIT_BURST", 100); err != nil {
		return Config{}, err
	}
	if cfg.StrictRPS, err = getInt("STRICT_RATE_LIMIT_RPS", 1); err != nil {
		return Config{}, err
	}
	if cfg.StrictBurst, err = getInt("STRICT_RATE_LIMIT_BURST", 10); err != nil {
		return Config{}, err
	}

	for _, o := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	switch cfg.DBDriver {
	case "sqlite":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("env variable DATABASE_URL is empty")
		}
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	return cfg, nil
}

// S3Enabled reports whether uploads should be sent to a real bucket.
func (c Config) S3Enabled() bool {
	return c.S3AccessKey != "" && c.S3SecretKey != ""
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return i, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
