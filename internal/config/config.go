package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	BotToken            string  `env:"TELEGRAM_BOT_TOKEN"`
	Admins              []int64 `env:"ADMINS" envSeparator:","`
	SupportUsername     string  `env:"SUPPORT_USERNAME" envDefault:"@WinWinSupport"`
	NotificationChannel int64   `env:"NOTIFICATION_CHANNEL"`

	DB       DBConfig
	Redis    RedisConfig
	Cashdesk CashdeskConfig
	Deposit  DepositConfig

	BroadcastDelay time.Duration `env:"BROADCAST_DELAY" envDefault:"100ms"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"30m"`

	HTTPAddr            string   `env:"HTTP_ADDR" envDefault:":8090"`
	MetricsAllowedCIDRs []string `env:"METRICS_ALLOWED_CIDRS" envSeparator:"," envDefault:"127.0.0.0/8,::1/128"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogDev   bool   `env:"LOG_DEV" envDefault:"false"`
}

type DBConfig struct {
	Driver     string `env:"DB_DRIVER" envDefault:"postgres"`
	Host       string `env:"DB_HOST" envDefault:"localhost"`
	Port       string `env:"DB_PORT" envDefault:"5432"`
	User       string `env:"DB_USER" envDefault:"postgres"`
	Password   string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name       string `env:"DB_NAME" envDefault:"cashdesk_bot"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"cashdesk.db"`
}

type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     string `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
}

// CashdeskConfig holds the credentials of the remote cashier API.
type CashdeskConfig struct {
	BaseURL     string        `env:"CASHDESK_API_URL" envDefault:"https://partners.servcul.com/CashdeskBotAPI/"`
	Hash        string        `env:"CASHDESK_HASH"`
	CashierPass string        `env:"CASHDESK_CASHIERPASS"`
	CashdeskID  string        `env:"CASHDESK_ID"`
	Lang        string        `env:"CASHDESK_LANG" envDefault:"ru"`
	Timeout     time.Duration `env:"CASHDESK_TIMEOUT" envDefault:"10s"`
}

type DepositConfig struct {
	Timeout   time.Duration `env:"DEPOSIT_TIMEOUT" envDefault:"10m"`
	MinAmount string        `env:"DEPOSIT_MIN_AMOUNT" envDefault:"100"`
}

func (c DepositConfig) Minimum() decimal.Decimal {
	return decimal.RequireFromString(c.MinAmount)
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if c.DB.Driver != "postgres" && c.DB.Driver != "sqlite" {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	minimum, err := decimal.NewFromString(c.Deposit.MinAmount)
	if err != nil {
		return fmt.Errorf("invalid DEPOSIT_MIN_AMOUNT: %w", err)
	}
	if !minimum.IsPositive() {
		return errors.New("DEPOSIT_MIN_AMOUNT must be positive")
	}
	if c.Deposit.Timeout <= 0 {
		return errors.New("DEPOSIT_TIMEOUT must be positive")
	}
	return nil
}
