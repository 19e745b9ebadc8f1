package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"vocalizz/internal/storage"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv        string
	Port          string
	PublicBaseURL string
	DatabaseURL   string
	JWTSecret     string

	StorageDriver     string
	StoragePath       string
	StorageSigningKey string
	GCSBucket         string
	SignedURLTTL      time.Duration

	ReplicateAPIKey        string
	ReplicateBaseURL       string
	ReplicateModelVersion  string
	ReplicateWebhookSecret string
	ElevenLabsAPIKey       string
	ElevenLabsBaseURL      string
	ElevenLabsModel        string

	StripeWebhookSecret string
	PricingCatalogPath  string

	RedisAddr string
	NATSURL   string

	EnforceCredits bool
	EnforceQuota   bool
	WelcomeCredits int
	MaxUploadBytes int64

	MetricsAddr        string
	CORSAllowedOrigins []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          port,
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),

		StorageDriver:     strings.ToLower(getEnv("STORAGE_DRIVER", "local")),
		StoragePath:       getEnv("STORAGE_PATH", "./storage"),
		StorageSigningKey: os.Getenv("STORAGE_SIGNING_KEY"),
		GCSBucket:         os.Getenv("GCS_BUCKET"),
		SignedURLTTL:      getEnvDuration("SIGNED_URL_TTL", time.Hour),

		ReplicateAPIKey:        os.Getenv("REPLICATE_API_KEY"),
		ReplicateBaseURL:       getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ReplicateModelVersion:  os.Getenv("REPLICATE_MODEL_VERSION"),
		ReplicateWebhookSecret: os.Getenv("REPLICATE_WEBHOOK_SECRET"),
		ElevenLabsAPIKey:       os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsBaseURL:      getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io/v1"),
		ElevenLabsModel:        getEnv("ELEVENLABS_MODEL", "eleven_multilingual_v2"),

		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		PricingCatalogPath:  os.Getenv("PRICING_CATALOG_PATH"),

		RedisAddr: os.Getenv("REDIS_ADDR"),
		NATSURL:   os.Getenv("NATS_URL"),

		EnforceCredits: getEnvBool("ENFORCE_CREDITS", true),
		EnforceQuota:   getEnvBool("ENFORCE_QUOTA", true),
		WelcomeCredits: getEnvInt("WELCOME_CREDITS", 5),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_MB", 50)) << 20,

		MetricsAddr:        os.Getenv("METRICS_ADDR"),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.StorageDriver {
	case "local":
		if cfg.StorageSigningKey == "" {
			cfg.StorageSigningKey = cfg.JWTSecret
		}
	case "gcs":
		if cfg.GCSBucket == "" {
			return nil, fmt.Errorf("GCS_BUCKET is required when STORAGE_DRIVER=gcs")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	return cfg, nil
}

// StorageOptions maps the storage settings onto the driver options.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Driver:     c.StorageDriver,
		Path:       c.StoragePath,
		SigningKey: []byte(c.StorageSigningKey),
		PublicURL:  c.PublicBaseURL,
		Bucket:     c.GCSBucket,
	}
}

// WebhookURL returns the public callback address for provider notifications.
func (c *Config) WebhookURL() string {
	return c.PublicBaseURL + "/v1/webhooks/provider"
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
