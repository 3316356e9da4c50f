// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config — корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env      string          `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig      `yaml:"http"`
	DB       DBConfig        `yaml:"db"`
	Redis    RedisConfig     `yaml:"redis"`
	Auth     AuthConfig      `yaml:"auth"`
	OTP      OTPConfig       `yaml:"otp"`
	Limits   RateLimitConfig `yaml:"limits"`
	Timeouts TimeoutConfig   `yaml:"timeouts"`
}

// HTTPConfig — сетевые настройки HTTP-сервера.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// DBConfig — настройки подключения к базе данных.
type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL" env-required:"true"`
}

// RedisConfig — настройки подключения к Redis.
type RedisConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL" env-required:"true"`
}

// AuthConfig содержит параметры выпуска и валидации токенов.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"1h"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"168h"`
	ResetTokenTTL   time.Duration `yaml:"reset_token_ttl" env:"RESET_TOKEN_TTL" env-default:"10m"`
	Issuer          string        `yaml:"issuer" env:"ISSUER" env-default:"social-backend"`
	Audience        []string      `yaml:"audience" env:"AUDIENCE" env-default:"social-api"`
	// BcryptCost — стоимость bcrypt для паролей; 0 означает bcrypt.DefaultCost.
	BcryptCost int `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"0"`
	// CipherKey — 32-байтный ключ AES-256 для шифрования OTP-записей в Redis.
	CipherKey string `yaml:"cipher_key" env:"CIPHER_KEY" env-required:"true"`
}

// OTPConfig — параметры одноразовых кодов восстановления пароля.
type OTPConfig struct {
	Length      int           `yaml:"length" env:"OTP_LENGTH" env-default:"6"`
	TTL         time.Duration `yaml:"ttl" env:"OTP_TTL" env-default:"10m"`
	MaxAttempts int           `yaml:"max_attempts" env:"OTP_MAX_ATTEMPTS" env-default:"5"`
}

// RateLimitConfig — лимиты фиксированных окон для чувствительных операций.
type RateLimitConfig struct {
	AuthWindow  time.Duration `yaml:"auth_window" env:"RL_AUTH_WINDOW" env-default:"1m"`
	AuthLimit   int64         `yaml:"auth_limit" env:"RL_AUTH_LIMIT" env-default:"10"`
	ResetWindow time.Duration `yaml:"reset_window" env:"RL_RESET_WINDOW" env-default:"1h"`
	ResetLimit  int64         `yaml:"reset_limit" env:"RL_RESET_LIMIT" env-default:"5"`
}

// TimeoutConfig — таймауты сервиса.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// ВАЖНО: после чтения файла накладываем ENV-переменные поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	// чтение файла + overlay ENV.
	tryRead := func(p string) (*Config, error) {
		if p == "" {
			return nil, fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	// 1) Явный путь.
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return &cfg, nil
}
