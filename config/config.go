package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	MQBackendNone     = ""
	MQBackendRabbitMQ = "rabbitmq"
	MQBackendPubSub   = "pubsub"
)

type Config struct {
	Env        string `env:"ENV" envDefault:"production"`
	ServerPort int    `env:"SERVER_PORT" envDefault:"8080"`
	// AuthBasePath is where the auth routes are mounted.
	AuthBasePath string `env:"API_BASE_PATH" envDefault:"/api/auth"`
	// UsersBasePath is where the profile and admin routes are mounted.
	UsersBasePath string `env:"API_USERS_BASE_PATH" envDefault:"/api/users"`

	Database  DatabaseConfig  `envPrefix:"DB_"`
	JWT       JWTConfig       `envPrefix:"JWT_"`
	OTP       OTPConfig       `envPrefix:"OTP_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	MQ        MQConfig        `envPrefix:"MQ_"`
	RabbitMQ  RabbitMQConfig  `envPrefix:"RABBITMQ_"`
	PubSub    PubSubConfig    `envPrefix:"PUBSUB_"`
	SMTP      SMTPConfig      `envPrefix:"SMTP_"`
	CORS      CORSConfig      `envPrefix:"CORS_"`
}

type DatabaseConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"eventra"`
	Password string `env:"PASSWORD" envDefault:"password"`
	DBName   string `env:"NAME" envDefault:"eventra_auth"`
	UseSSL   bool   `env:"USE_SSL" envDefault:"false"`
}

// JWTConfig holds signing material for access and refresh tokens. The two
// secrets must differ.
type JWTConfig struct {
	AccessSecret  string        `env:"ACCESS_SECRET"`
	RefreshSecret string        `env:"REFRESH_SECRET"`
	Issuer        string        `env:"ISSUER" envDefault:"eventra-auth"`
	AccessTTL     time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
}

type OTPConfig struct {
	TTL         time.Duration `env:"TTL" envDefault:"10m"`
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	// RequestLimit caps OTP requests per user and purpose inside RequestWindow.
	RequestLimit  int           `env:"REQUEST_LIMIT" envDefault:"5"`
	RequestWindow time.Duration `env:"REQUEST_WINDOW" envDefault:"15m"`
	RequestBlock  time.Duration `env:"REQUEST_BLOCK" envDefault:"30m"`
}

// RedisConfig enables rate limiting when Addr is set.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type RateLimitConfig struct {
	Limit  int           `env:"LIMIT" envDefault:"30"`
	Window time.Duration `env:"WINDOW" envDefault:"1m"`
	Block  time.Duration `env:"BLOCK" envDefault:"5m"`
}

type MQConfig struct {
	// Backend selects the OTP delivery queue: "rabbitmq", "pubsub" or empty.
	Backend    string `env:"BACKEND"`
	OTPChannel string `env:"OTP_CHANNEL" envDefault:"otp.delivery"`
}

type RabbitMQConfig struct {
	URL             string `env:"URL"`
	QueueDurable    bool   `env:"QUEUE_DURABLE" envDefault:"true"`
	QueueAutoDelete bool   `env:"QUEUE_AUTO_DELETE" envDefault:"false"`
	PrefetchCount   int    `env:"PREFETCH_COUNT" envDefault:"10"`
}

type PubSubConfig struct {
	ProjectID          string `env:"PROJECT_ID"`
	CredentialsFile    string `env:"CREDENTIALS_FILE"`
	SubscriptionSuffix string `env:"SUBSCRIPTION_SUFFIX" envDefault:"-sub"`
}

type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"no-reply@eventra.local"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// LoadConfig reads the environment (and .env in dev) into a Config.
func LoadConfig() (Config, error) {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the service runs with development defaults.
func (c Config) IsDev() bool {
	return c.Env == "dev"
}

// Validate checks settings that have no safe default.
func (c Config) Validate() error {
	if strings.TrimSpace(c.JWT.AccessSecret) == "" {
		return errors.New("JWT_ACCESS_SECRET is required")
	}
	if strings.TrimSpace(c.JWT.RefreshSecret) == "" {
		return errors.New("JWT_REFRESH_SECRET is required")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	switch c.MQ.Backend {
	case MQBackendNone, MQBackendRabbitMQ, MQBackendPubSub:
	default:
		return fmt.Errorf("unsupported MQ_BACKEND %q", c.MQ.Backend)
	}
	if c.OTP.MaxAttempts < 1 {
		return errors.New("OTP_MAX_ATTEMPTS must be positive")
	}
	return nil
}
