// Package config содержит логику чтения конфигурации сервиса команд салона.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/salon-comanda/internal/commission"
)

const (
	defaultRunAddress  = "localhost:8080"
	defaultTimezone    = "America/Sao_Paulo"
	defaultServiceRate = "0.10"
	defaultProductRate = "0.15"
	defaultRateLimit   = "100-S"
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress            string `env:"RUN_ADDRESS"`
	DatabaseURI           string `env:"DATABASE_URI"`
	RedisAddress          string `env:"REDIS_ADDRESS"`
	SalonTimezone         string `env:"SALON_TIMEZONE"`
	ServiceCommissionRate string `env:"SERVICE_COMMISSION_RATE"`
	ProductCommissionRate string `env:"PRODUCT_COMMISSION_RATE"`
	RateLimit             string `env:"RATE_LIMIT"`
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	envCfg := Config{}
	if err := env.Parse(&envCfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}
	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RedisAddress, "r", "", "redis address for report cache")
	flag.StringVar(&cfg.SalonTimezone, "tz", defaultTimezone, "salon timezone (IANA name)")
	flag.StringVar(&cfg.ServiceCommissionRate, "service-rate", defaultServiceRate, "default service commission rate")
	flag.StringVar(&cfg.ProductCommissionRate, "product-rate", defaultProductRate, "default product commission rate")
	flag.StringVar(&cfg.RateLimit, "rate-limit", defaultRateLimit, "request rate limit, e.g. 100-S")

	flag.Parse()

	override(&cfg.RunAddress, envCfg.RunAddress)
	override(&cfg.DatabaseURI, envCfg.DatabaseURI)
	override(&cfg.RedisAddress, envCfg.RedisAddress)
	override(&cfg.SalonTimezone, envCfg.SalonTimezone)
	override(&cfg.ServiceCommissionRate, envCfg.ServiceCommissionRate)
	override(&cfg.ProductCommissionRate, envCfg.ProductCommissionRate)
	override(&cfg.RateLimit, envCfg.RateLimit)

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.SalonTimezone == "" {
		cfg.SalonTimezone = defaultTimezone
	}

	return cfg, nil
}

func override(dst *string, envValue string) {
	if envValue != "" {
		*dst = envValue
	}
}

// CommissionRates разбирает ставки комиссии по умолчанию.
func (c *Config) CommissionRates() (commission.Rates, error) {
	rates := commission.DefaultRates()

	if c.ServiceCommissionRate != "" {
		v, err := decimal.NewFromString(c.ServiceCommissionRate)
		if err != nil {
			return commission.Rates{}, fmt.Errorf("parse service commission rate: %w", err)
		}
		rates.Service = v
	}
	if c.ProductCommissionRate != "" {
		v, err := decimal.NewFromString(c.ProductCommissionRate)
		if err != nil {
			return commission.Rates{}, fmt.Errorf("parse product commission rate: %w", err)
		}
		rates.Product = v
	}

	if err := rates.Validate(); err != nil {
		return commission.Rates{}, err
	}
	return rates, nil
}
