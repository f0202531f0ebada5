package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
	// AdminEmails grants platform-admin capabilities regardless of the token role.
	AdminEmails []string
}

type LogConfig struct {
	File string
}

type BillingConfig struct {
	SupportFeePercent decimal.Decimal
	InvoiceDueDays    int
}

type CollabConfig struct {
	BaseURL          string
	NotifyWebhookURL string
	Timeout          time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type EffectsConfig struct {
	Workers     int
	MaxAttempts int
	Lease       time.Duration
}

type DocumentsConfig struct {
	// FontFile is an optional TTF used for invoice PDFs so non-Latin names render.
	FontFile string
}

type ScheduleConfig struct {
	ExpiryInterval  time.Duration
	EffectsInterval time.Duration
	MonthlyCron     string
	OverdueCron     string
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Log         LogConfig
	Billing     BillingConfig
	Collab      CollabConfig
	Redis       RedisConfig
	Effects     EffectsConfig
	Schedule    ScheduleConfig
	Documents   DocumentsConfig
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	v.SetDefault("SUPPORT_FEE_PERCENT", "8")
	v.SetDefault("INVOICE_DUE_DAYS", 30)
	v.SetDefault("COLLAB_TIMEOUT", "5s")
	v.SetDefault("EFFECTS_WORKERS", 4)
	v.SetDefault("EFFECTS_MAX_ATTEMPTS", 5)
	v.SetDefault("EFFECTS_LEASE", "5m")
	v.SetDefault("SCHEDULE_EXPIRY_INTERVAL", "10m")
	v.SetDefault("SCHEDULE_EFFECTS_INTERVAL", "1m")
	v.SetDefault("SCHEDULE_MONTHLY_CRON", "0 3 21 * *")
	v.SetDefault("SCHEDULE_OVERDUE_CRON", "0 4 * * *")

	_ = v.ReadInConfig()

	percent, err := decimal.NewFromString(strings.TrimSpace(v.GetString("SUPPORT_FEE_PERCENT")))
	if err != nil {
		return nil, fmt.Errorf("SUPPORT_FEE_PERCENT is invalid: %w", err)
	}

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
			AdminEmails:  parseList(strings.ToLower(v.GetString("ADMIN_EMAILS"))),
		},
		Log: LogConfig{
			File: v.GetString("LOG_FILE"),
		},
		Billing: BillingConfig{
			SupportFeePercent: percent,
			InvoiceDueDays:    v.GetInt("INVOICE_DUE_DAYS"),
		},
		Collab: CollabConfig{
			BaseURL:          strings.TrimRight(v.GetString("COLLAB_BASE_URL"), "/"),
			NotifyWebhookURL: v.GetString("NOTIFY_WEBHOOK_URL"),
			Timeout:          v.GetDuration("COLLAB_TIMEOUT"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Effects: EffectsConfig{
			Workers:     v.GetInt("EFFECTS_WORKERS"),
			MaxAttempts: v.GetInt("EFFECTS_MAX_ATTEMPTS"),
			Lease:       v.GetDuration("EFFECTS_LEASE"),
		},
		Schedule: ScheduleConfig{
			ExpiryInterval:  v.GetDuration("SCHEDULE_EXPIRY_INTERVAL"),
			EffectsInterval: v.GetDuration("SCHEDULE_EFFECTS_INTERVAL"),
			MonthlyCron:     v.GetString("SCHEDULE_MONTHLY_CRON"),
			OverdueCron:     v.GetString("SCHEDULE_OVERDUE_CRON"),
		},
		Documents: DocumentsConfig{
			FontFile: v.GetString("PDF_FONT_FILE"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns a configuration with every optional value filled in.
// Tests and tooling use it instead of reading the environment.
func Defaults() *Config {
	return &Config{
		Environment: "test",
		HTTP:        HTTPConfig{Host: "127.0.0.1", Port: 7090},
		Billing: BillingConfig{
			SupportFeePercent: decimal.NewFromInt(8),
			InvoiceDueDays:    30,
		},
		Collab:  CollabConfig{Timeout: 5 * time.Second},
		Effects: EffectsConfig{Workers: 4, MaxAttempts: 5, Lease: 5 * time.Minute},
		Schedule: ScheduleConfig{
			ExpiryInterval:  10 * time.Minute,
			EffectsInterval: time.Minute,
			MonthlyCron:     "0 3 21 * *",
			OverdueCron:     "0 4 * * *",
		},
	}
}

// IsAdminEmail reports whether email is on the ADMIN_EMAILS allowlist.
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, item := range c.Auth.AdminEmails {
		if item == email {
			return true
		}
	}
	return false
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Billing.SupportFeePercent.IsNegative() || cfg.Billing.SupportFeePercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("SUPPORT_FEE_PERCENT must be between 0 and 100")
	}
	if cfg.Billing.InvoiceDueDays <= 0 {
		return fmt.Errorf("INVOICE_DUE_DAYS must be positive")
	}
	if cfg.Collab.Timeout <= 0 {
		return fmt.Errorf("COLLAB_TIMEOUT must be positive")
	}
	if cfg.Effects.Workers <= 0 {
		cfg.Effects.Workers = 1
	}
	if cfg.Effects.MaxAttempts <= 0 {
		cfg.Effects.MaxAttempts = 1
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
