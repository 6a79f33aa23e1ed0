package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// PublicBaseURL is the address magic links point at, typically the
	// web frontend.
	PublicBaseURL string `env:"PUBLIC_BASE_URL, default=http://localhost:3000"`

	Auth  AuthConfig
	Mongo MongoConfig
	Redis RedisConfig
}

type AuthConfig struct {
	// JWTSecret signs access and refresh tokens. Mandatory; there is no
	// safe default for a signing key.
	JWTSecret string `env:"JWT_SECRET, required"`

	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL,  default=30m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL, default=168h"`

	MagicLinkTTL      time.Duration `env:"MAGIC_LINK_TTL,      default=15m"`
	MagicLinkCooldown time.Duration `env:"MAGIC_LINK_COOLDOWN, default=5m"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=membership"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,  default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// Development reports whether the service runs with development conveniences
// such as pretty logs and the log-based link delivery.
func (c *Config) Development() bool {
	return c.Env == "development"
}
