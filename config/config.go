package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App         AppConfig
	HTTP        ServerConfig
	MySQL       MySQLConfig
	Log         LogConfig
	Checkout    CheckoutConfig
	MercadoPago MercadoPagoConfig
	SMTP        SMTPConfig
	Telegram    TelegramConfig
	Notify      NotifyConfig
	Jobs        JobsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type CheckoutConfig struct {
	TokenTTL     time.Duration
	TokenMaxUses int32
	JobBatchSize int32
}

type MercadoPagoConfig struct {
	AccessToken         string
	BaseURL             string
	CheckoutBaseURL     string
	NotificationURL     string
	Currency            string
	StatementDescriptor string
	HTTPTimeout         time.Duration
}

type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	MaxRetries int
}

type TelegramConfig struct {
	BotToken    string
	ChatID      string
	HTTPTimeout time.Duration
}

type NotifyConfig struct {
	Workers   int
	QueueSize int
}

type JobsConfig struct {
	EmailResendInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "checkout-service"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Checkout: CheckoutConfig{
			TokenTTL:     getSecondsEnv("CHECKOUT_TOKEN_TTL_SECONDS", 1800*time.Second),
			TokenMaxUses: int32(getIntEnv("CHECKOUT_TOKEN_MAX_USES", 3)),
			JobBatchSize: int32(getIntEnv("JOB_BATCH_SIZE", 100)),
		},
		MercadoPago: MercadoPagoConfig{
			AccessToken:         getEnv("MERCADOPAGO_ACCESS_TOKEN", ""),
			BaseURL:             getEnv("MERCADOPAGO_BASE_URL", "https://api.mercadopago.com"),
			CheckoutBaseURL:     getEnv("CHECKOUT_BASE_URL", "http://localhost:3000"),
			NotificationURL:     getEnv("CHECKOUT_NOTIFICATION_URL", ""),
			Currency:            getEnv("MERCADOPAGO_CURRENCY", "ARS"),
			StatementDescriptor: getEnv("MERCADOPAGO_STATEMENT_DESCRIPTOR", "VELORUM"),
			HTTPTimeout:         getSecondsEnv("MERCADOPAGO_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", "localhost"),
			Port:       getIntEnv("SMTP_PORT", 587),
			Username:   getEnv("SMTP_USERNAME", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			From:       getEnv("SMTP_FROM", "no-reply@velorum.store"),
			MaxRetries: getIntEnv("EMAIL_MAX_RETRIES", 3),
		},
		Telegram: TelegramConfig{
			BotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:      getEnv("TELEGRAM_CHAT_ID", ""),
			HTTPTimeout: getSecondsEnv("TELEGRAM_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Notify: NotifyConfig{
			Workers:   getIntEnv("NOTIFY_WORKERS", 2),
			QueueSize: getIntEnv("NOTIFY_QUEUE_SIZE", 64),
		},
		Jobs: JobsConfig{
			EmailResendInterval: getMinutesEnv("EMAIL_RESEND_INTERVAL_MINUTES", 15*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
