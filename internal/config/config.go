// Package config загружает конфигурацию сервера из переменных окружения.
// Вся конфигурация (секреты подписи, время жизни токенов) передается в
// сервисы явно при конструировании, core-логика не читает ambient state.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds runtime settings for the accountd server.
type Config struct {
	Addr         string `env:"ACCOUNTD_ADDR" envDefault:":8080"`
	DatabasePath string `env:"ACCOUNTD_DB_PATH" envDefault:"accountd.db"`
	LogLevel     string `env:"ACCOUNTD_LOG_LEVEL" envDefault:"info"`

	// Секреты подписи JWT; access и refresh обязаны различаться
	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET,required"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET,required"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"720h"`

	// Cookie-конверт для пары токенов
	CookieMaxAge time.Duration `env:"AUTH_COOKIE_MAX_AGE" envDefault:"24h"`
	CookieSecure bool          `env:"AUTH_COOKIE_SECURE" envDefault:"true"`

	// S3-совместимое media хранилище для аватаров и обложек
	S3AccessKey    string `env:"S3_ACCESS_KEY"`
	S3SecretKey    string `env:"S3_SECRET_KEY"`
	S3Bucket       string `env:"S3_BUCKET" envDefault:"accountd-media"`
	S3Region       string `env:"S3_REGION" envDefault:"us-east-1"`
	S3BaseEndpoint string `env:"S3_BASE_ENDPOINT"`
	S3PublicURL    string `env:"S3_PUBLIC_URL"`

	// Rate limits: auth-лимит применяется к login/register/refresh
	RateLimitDefault int           `env:"RATE_LIMIT_DEFAULT" envDefault:"100"`
	RateLimitAuth    int           `env:"RATE_LIMIT_AUTH" envDefault:"10"`
	RateLimitWindow  time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// Load парсит конфигурацию из окружения и проверяет инварианты
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	// Компрометация одного класса токенов не должна позволять
	// подделать другой
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}

	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return fmt.Errorf("access token TTL must be shorter than refresh token TTL")
	}

	return nil
}
