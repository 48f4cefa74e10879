package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	SiteURL     string

	AuthCookieSecure bool
	AuthJWTSecret    string
	AuthSessionTTL   time.Duration
	AdminToken       string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	AutoMigrate       bool

	SchedulerEnabled  bool
	SchedulerInterval time.Duration

	Stripe    StripeConfig
	Storage   StorageConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
}

type StripeConfig struct {
	SecretKey        string
	WebhookSecret    string
	WebhookTolerance time.Duration
	APIBaseURL       string
	CheckoutEnabled  bool
	PricingPath      string
	PriceIDs         map[string]string
}

type StorageConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	BaseEndpoint    string
	DownloadURLTTL  time.Duration
}

// Configured reports whether every setting needed to sign download links is present.
func (c StorageConfig) Configured() bool {
	return len(c.Missing()) == 0
}

// Missing lists the environment keys that still need a value.
func (c StorageConfig) Missing() []string {
	var missing []string
	if c.Region == "" {
		missing = append(missing, "AWS_REGION")
	}
	if c.AccessKeyID == "" {
		missing = append(missing, "AWS_ACCESS_KEY_ID")
	}
	if c.SecretAccessKey == "" {
		missing = append(missing, "AWS_SECRET_ACCESS_KEY")
	}
	if c.Bucket == "" {
		missing = append(missing, "S3_BUCKET")
	}
	return missing
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	From         string
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	AuthRate      int
	AuthBurst     int
	Cooldown      time.Duration
}

const (
	TierDIY   = "DIY"
	TierFULL  = "FULL"
	TierADDON = "ADDON"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	siteURL := getenv("SITE_URL", getenv("NEXT_PUBLIC_SITE_URL", "http://localhost:8080"))

	return Config{
		AppName:          getenv("APP_SERVICE", "storefront"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		Environment:      environment,
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		SiteURL:          strings.TrimRight(strings.TrimSpace(siteURL), "/"),
		AuthCookieSecure: authCookieSecure,
		AuthJWTSecret:    strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		AuthSessionTTL:   time.Duration(getenvInt("AUTH_SESSION_TTL_HOURS", 24*7)) * time.Hour,
		AdminToken:       strings.TrimSpace(getenv("ADMIN_TOKEN", "")),
		OTLPEndpoint:     getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "storefront"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "storefront.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		AutoMigrate:       getenvBool("AUTO_MIGRATE", false),

		SchedulerEnabled:  getenvBool("SCHEDULER_ENABLED", true),
		SchedulerInterval: time.Duration(getenvInt("SCHEDULER_INTERVAL_SECONDS", 3600)) * time.Second,

		Stripe: StripeConfig{
			SecretKey:        strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			WebhookSecret:    strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			WebhookTolerance: time.Duration(getenvInt("STRIPE_WEBHOOK_TOLERANCE_SECONDS", 300)) * time.Second,
			APIBaseURL:       getenv("STRIPE_API_BASE_URL", "https://api.stripe.com"),
			CheckoutEnabled:  getenvBool("ENABLE_CHECKOUT", false),
			PricingPath:      strings.TrimSpace(getenv("PRICING_CONFIG_PATH", "")),
			PriceIDs: map[string]string{
				TierDIY:   strings.TrimSpace(getenv("STRIPE_PRICE_ID_DIY", "")),
				TierFULL:  strings.TrimSpace(getenv("STRIPE_PRICE_ID_FULL", "")),
				TierADDON: strings.TrimSpace(getenv("STRIPE_PRICE_ID_ADDON", "")),
			},
		},

		Storage: StorageConfig{
			Region:          strings.TrimSpace(getenv("AWS_REGION", "")),
			AccessKeyID:     strings.TrimSpace(getenv("AWS_ACCESS_KEY_ID", "")),
			SecretAccessKey: strings.TrimSpace(getenv("AWS_SECRET_ACCESS_KEY", "")),
			Bucket:          strings.TrimSpace(getenv("S3_BUCKET", "")),
			BaseEndpoint:    strings.TrimSpace(getenv("S3_BASE_ENDPOINT", "")),
			DownloadURLTTL:  time.Duration(getenvInt("DOWNLOAD_URL_TTL_SECONDS", 300)) * time.Second,
		},

		Email: EmailConfig{
			SMTPHost:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			From:         getenv("EMAIL_FROM", "no-reply@localhost"),
		},

		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getenv("REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("REDIS_DB", 0),
			AuthRate:      getenvInt("RATE_LIMIT_AUTH_PER_MINUTE", 10),
			AuthBurst:     getenvInt("RATE_LIMIT_AUTH_BURST", 10),
			Cooldown:      time.Duration(getenvInt("VERIFY_EMAIL_COOLDOWN_SECONDS", 60)) * time.Second,
		},
	}
}

// Validate checks that the secrets required to serve traffic are present.
func (c Config) Validate() error {
	var errs []error
	if c.AuthJWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
	}
	if c.Stripe.SecretKey == "" {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY is required"))
	}
	if c.Stripe.WebhookSecret == "" {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required"))
	}
	switch c.DBType {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_TYPE %q", c.DBType))
	}
	if c.SiteURL == "" {
		errs = append(errs, errors.New("SITE_URL is required"))
	}
	return errors.Join(errs...)
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
