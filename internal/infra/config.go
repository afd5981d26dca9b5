package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
// It is built once at process start and passed by pointer; nothing mutates it
// afterwards.
type Config struct {
	AppEnv             string
	Port               string
	MetricsPort        string
	DatabaseURL        string
	RedisURL           string
	QueueName          string
	JWTSecret          string
	JWTIssuer          string
	JWTTTL             time.Duration
	StoragePath        string
	MaxUploadBytes     int64
	DefaultLocale      string
	GeoIPDBPath        string
	CORSAllowedOrigins []string

	VolcAccessKey      string
	VolcSecretKey      string
	VolcRegion         string
	VolcBaseURL        string
	ProviderTimeout    time.Duration
	ProviderSimulation bool

	WorkerConcurrency int
	JobTimeout        time.Duration
	FailurePolicy     string
	DefaultCredits    int64

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	appEnv := getEnv("APP_ENV", "development")
	cfg := &Config{
		AppEnv:             appEnv,
		Port:               getEnv("PORT", "8080"),
		MetricsPort:        getEnv("METRICS_PORT", "9090"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		QueueName:          getEnv("QUEUE_NAME", "aigc_jobs"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTIssuer:          getEnv("JWT_ISSUER", "aigc"),
		JWTTTL:             time.Minute * time.Duration(getEnvInt("JWT_TTL_MINUTES", 60*24)),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "en"),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		VolcAccessKey:      strings.TrimSpace(os.Getenv("VOLC_ACCESS_KEY")),
		VolcSecretKey:      strings.TrimSpace(os.Getenv("VOLC_SECRET_KEY")),
		VolcRegion:         getEnv("VOLC_REGION", "cn-north-1"),
		VolcBaseURL:        getEnv("VOLC_BASE_URL", "https://visual.volcengineapi.com"),
		ProviderTimeout:    time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 60)),
		ProviderSimulation: getEnvBool("PROVIDER_SIMULATION", appEnv != "production"),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 4),
		JobTimeout:         time.Second * time.Duration(getEnvInt("JOB_TIMEOUT_SECONDS", 30*60)),
		FailurePolicy:      strings.ToLower(getEnv("FAILURE_POLICY", "refund")),
		DefaultCredits:     int64(getEnvInt("DEFAULT_CREDITS", 100)),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.FailurePolicy {
	case "refund", "forfeit":
	default:
		return nil, fmt.Errorf("FAILURE_POLICY must be refund or forfeit, got %q", cfg.FailurePolicy)
	}

	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 1
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}

	return cfg, nil
}

// HasProviderCredentials reports whether both provider keys are configured.
func (c *Config) HasProviderCredentials() bool {
	return c.VolcAccessKey != "" && c.VolcSecretKey != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
