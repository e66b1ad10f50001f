package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	DBDSN      string `mapstructure:"DB_DSN"`
	DBMaxConns int32  `mapstructure:"DB_MAX_CONNS"`

	HTTPAddr      string `mapstructure:"HTTP_ADDR"`
	RateLimitRPS  int    `mapstructure:"RATE_LIMIT_RPS"`
	TelegramToken string `mapstructure:"TELEGRAM_TOKEN"`

	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`
	AuditQueue  string `mapstructure:"AUDIT_QUEUE"`
	AuditBuffer int    `mapstructure:"AUDIT_BUFFER"`

	RedisURL string `mapstructure:"REDIS_URL"`

	ReclaimInterval    time.Duration `mapstructure:"RECLAIM_INTERVAL"`
	LockGracePeriod    time.Duration `mapstructure:"LOCK_GRACE_PERIOD"`
	ClockSkewTolerance time.Duration `mapstructure:"CLOCK_SKEW_TOLERANCE"`

	// Timezone зона, в которой толкуются еженедельные окна врачей
	Timezone string `mapstructure:"TIMEZONE"`
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv читает конфиг из переменных окружения и подставляет значения по умолчанию
func FromEnv() (*Config, error) {
	cfg := &Config{
		Environment:   getString("ENV", "development"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		DBDSN:         os.Getenv("DB_DSN"),
		HTTPAddr:      getString("HTTP_ADDR", ":8080"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		RabbitMQURL:   os.Getenv("RABBITMQ_URL"),
		AuditQueue:    getString("AUDIT_QUEUE", "audit.events"),
		RedisURL:      os.Getenv("REDIS_URL"),
		Timezone:      getString("TIMEZONE", "Local"),
	}

	var errs []error
	maxConns, err := getInt("DB_MAX_CONNS", 10)
	errs = append(errs, err)
	cfg.DBMaxConns = int32(maxConns)

	cfg.RateLimitRPS, err = getInt("RATE_LIMIT_RPS", 20)
	errs = append(errs, err)

	cfg.AuditBuffer, err = getInt("AUDIT_BUFFER", 256)
	errs = append(errs, err)

	cfg.ReclaimInterval, err = getDuration("RECLAIM_INTERVAL", 10*time.Minute)
	errs = append(errs, err)
	cfg.LockGracePeriod, err = getDuration("LOCK_GRACE_PERIOD", 2*time.Hour)
	errs = append(errs, err)
	cfg.ClockSkewTolerance, err = getDuration("CLOCK_SKEW_TOLERANCE", 5*time.Minute)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет обязательные поля и диапазоны
func (c *Config) Validate() error {
	var errs []error
	if c.DBDSN == "" {
		errs = append(errs, errors.New("DB_DSN is required but not set"))
	}
	if c.DBMaxConns <= 0 {
		errs = append(errs, fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.DBMaxConns))
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %d", c.RateLimitRPS))
	}
	if c.AuditBuffer <= 0 {
		errs = append(errs, fmt.Errorf("AUDIT_BUFFER must be positive, got %d", c.AuditBuffer))
	}
	if c.ReclaimInterval <= 0 {
		errs = append(errs, fmt.Errorf("RECLAIM_INTERVAL must be positive, got %s", c.ReclaimInterval))
	}
	if c.LockGracePeriod <= 0 {
		errs = append(errs, fmt.Errorf("LOCK_GRACE_PERIOD must be positive, got %s", c.LockGracePeriod))
	}
	if c.ClockSkewTolerance < 0 {
		errs = append(errs, fmt.Errorf("CLOCK_SKEW_TOLERANCE must not be negative, got %s", c.ClockSkewTolerance))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
