package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Store and delivery backend names.
const (
	StoreDynamo   = "dynamo"
	StorePostgres = "postgres"

	DeliverySNS  = "sns"
	DeliverySMTP = "smtp"
	DeliveryLog  = "log"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string `env:"APP_PORT, default=8080"`
	AppEnv   string `env:"APP_ENV, default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`
	// BaseURL prefixes the verification link sent to new accounts.
	BaseURL string `env:"BASE_URL, default=http://localhost:8080"`

	StoreDriver string `env:"STORE_DRIVER, default=dynamo"`
	DatabaseURL string `env:"DATABASE_URL"`

	AWSRegion      string `env:"AWS_REGION, default=us-east-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`

	DynamoTables DynamoTables

	S3BucketName   string        `env:"S3_BUCKET_NAME, default=account-images"`
	ImageURLTTL    time.Duration `env:"IMAGE_URL_TTL, default=1h"`
	MaxUploadBytes int64         `env:"MAX_UPLOAD_BYTES, default=5242880"`

	VerificationTokenTTL time.Duration `env:"VERIFICATION_TOKEN_TTL, default=2m"`
	BcryptCost           int           `env:"BCRYPT_COST, default=10"`

	DeliveryDriver string `env:"DELIVERY_DRIVER, default=sns"`
	SNSTopicARN    string `env:"SNS_TOPIC_ARN"`
	SNSRegion      string `env:"SNS_REGION, default=us-east-1"`

	SMTPHost     string `env:"SMTP_HOST, default=localhost"`
	SMTPPort     string `env:"SMTP_PORT, default=1025"`
	SMTPFrom     string `env:"SMTP_FROM, default=noreply@example.com"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*"` // CORS allowed origins
	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS, default=5"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST, default=10"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy     bool     `env:"TRUST_PROXY, default=false"`
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Accounts           string `env:"DYNAMO_TABLE_ACCOUNTS, default=accounts"`
	VerificationTokens string `env:"DYNAMO_TABLE_VERIFICATION_TOKENS, default=verification_tokens"`
	ProfileImages      string `env:"DYNAMO_TABLE_PROFILE_IMAGES, default=profile_images"`
}

// Load reads all configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration through l and validates it.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Development reports whether the service runs in a local development environment.
func (c *Config) Development() bool {
	return c.AppEnv == "development"
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreDynamo:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StorePostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.DeliveryDriver {
	case DeliverySNS, DeliverySMTP, DeliveryLog:
	default:
		return fmt.Errorf("unknown DELIVERY_DRIVER %q", c.DeliveryDriver)
	}
	if c.VerificationTokenTTL <= 0 {
		return fmt.Errorf("VERIFICATION_TOKEN_TTL must be positive")
	}
	if c.ImageURLTTL <= 0 {
		return fmt.Errorf("IMAGE_URL_TTL must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}
