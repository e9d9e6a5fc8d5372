// Package config содержит логику чтения конфигурации сервиса оформления заявок.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

const pricePrefix = "STRIPE_PRICE_"

// Config содержит параметры конфигурации сервиса. Значение создаётся один раз при старте
// и передаётся компонентам через конструкторы.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`

	DataDir       string `env:"DATA_DIR" envDefault:"data"`
	UploadDir     string `env:"UPLOAD_DIR" envDefault:"uploads"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	MaxUploadMB   int64  `env:"MAX_UPLOAD_MB" envDefault:"15"`
	CatalogFile   string `env:"CATALOG_FILE"`

	SendEmailOnSubmit bool `env:"SEND_EMAIL_ON_SUBMIT" envDefault:"false"`
	SendEmailOnPaid   bool `env:"SEND_EMAIL_ON_PAID" envDefault:"true"`

	StripeSecretKey     string            `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string            `env:"STRIPE_WEBHOOK_SECRET"`
	StripePrices        map[string]string `env:"STRIPE_PRICES" envKeyValSeparator:":"`

	ResendAPIKey         string   `env:"RESEND_API_KEY"`
	ResendAPIURL         string   `env:"RESEND_API_URL" envDefault:"https://api.resend.com"`
	MailFrom             string   `env:"MAIL_FROM"`
	MailTo               []string `env:"MAIL_TO" envSeparator:","`
	MailCC               []string `env:"MAIL_CC" envSeparator:","`
	MailReplyToApplicant bool     `env:"MAIL_REPLY_TO_APPLICANT" envDefault:"true"`

	UploadBackend  string `env:"UPLOAD_BACKEND" envDefault:"disk"`
	MinIOEndpoint  string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY"`
	MinIOBucket    string `env:"MINIO_BUCKET" envDefault:"eorimag-uploads"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	cfg.StripePrices = mergePriceOverrides(cfg.StripePrices, os.Environ())
	cfg.MailTo = compact(cfg.MailTo)
	cfg.MailCC = compact(cfg.MailCC)
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	if cfg.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", cfg.MaxUploadMB)
	}

	return cfg, nil
}

// mergePriceOverrides дополняет карту цен переменными вида STRIPE_PRICE_EORI_RO=price_xxx.
func mergePriceOverrides(prices map[string]string, environ []string) map[string]string {
	merged := make(map[string]string, len(prices))
	for k, v := range prices {
		if k = strings.TrimSpace(k); k != "" {
			merged[k] = strings.TrimSpace(v)
		}
	}

	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, pricePrefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, pricePrefix))
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		merged[key] = value
	}

	return merged
}

func compact(list []string) []string {
	res := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			res = append(res, s)
		}
	}
	return res
}
