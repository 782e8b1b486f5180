package config

import (
	"os"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s failed: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		}
	})
}

func TestLoadRequiresMySQLDSN(t *testing.T) {
	unsetEnv(t, "MYSQL_DSN")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing MYSQL_DSN")
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/checkout?parseTime=true")
	unsetEnv(t, "CHECKOUT_TOKEN_TTL_SECONDS")
	unsetEnv(t, "CHECKOUT_TOKEN_MAX_USES")
	unsetEnv(t, "EMAIL_MAX_RETRIES")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Checkout.TokenTTL != 1800*time.Second {
		t.Fatalf("unexpected token ttl: %v", cfg.Checkout.TokenTTL)
	}
	if cfg.Checkout.TokenMaxUses != 3 {
		t.Fatalf("unexpected token max uses: %d", cfg.Checkout.TokenMaxUses)
	}
	if cfg.SMTP.MaxRetries != 3 {
		t.Fatalf("unexpected email max retries: %d", cfg.SMTP.MaxRetries)
	}
	if cfg.MercadoPago.BaseURL != "https://api.mercadopago.com" {
		t.Fatalf("unexpected mercadopago base url: %s", cfg.MercadoPago.BaseURL)
	}
	if cfg.MercadoPago.Currency != "ARS" {
		t.Fatalf("unexpected currency: %s", cfg.MercadoPago.Currency)
	}
	if cfg.Notify.Workers != 2 || cfg.Notify.QueueSize != 64 {
		t.Fatalf("unexpected notify config: %+v", cfg.Notify)
	}
	if cfg.Jobs.EmailResendInterval != 15*time.Minute {
		t.Fatalf("unexpected resend interval: %v", cfg.Jobs.EmailResendInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/checkout?parseTime=true")
	setEnv(t, "APP_SERVICE_NAME", "checkout-test")
	setEnv(t, "HTTP_PORT", "8181")
	setEnv(t, "MYSQL_MAX_OPEN_CONNS", "20")
	setEnv(t, "MYSQL_MAX_IDLE_CONNS", "8")
	setEnv(t, "MYSQL_CONN_MAX_LIFETIME_MINUTES", "40")
	setEnv(t, "CHECKOUT_TOKEN_TTL_SECONDS", "900")
	setEnv(t, "CHECKOUT_TOKEN_MAX_USES", "5")
	setEnv(t, "JOB_BATCH_SIZE", "50")
	setEnv(t, "EMAIL_MAX_RETRIES", "4")
	setEnv(t, "EMAIL_RESEND_INTERVAL_MINUTES", "30")
	setEnv(t, "NOTIFY_WORKERS", "4")
	setEnv(t, "NOTIFY_QUEUE_SIZE", "128")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.App.ServiceName != "checkout-test" {
		t.Fatalf("unexpected app service name: %s", cfg.App.ServiceName)
	}
	if cfg.HTTP.Port != "8181" {
		t.Fatalf("unexpected http port: %s", cfg.HTTP.Port)
	}
	if cfg.MySQL.MaxOpenConns != 20 || cfg.MySQL.MaxIdleConns != 8 {
		t.Fatalf("unexpected mysql pool config: %+v", cfg.MySQL)
	}
	if cfg.MySQL.ConnMaxLifetime != 40*time.Minute {
		t.Fatalf("unexpected mysql lifetime: %v", cfg.MySQL.ConnMaxLifetime)
	}
	if cfg.Checkout.TokenTTL != 15*time.Minute {
		t.Fatalf("unexpected token ttl: %v", cfg.Checkout.TokenTTL)
	}
	if cfg.Checkout.TokenMaxUses != 5 {
		t.Fatalf("unexpected token max uses: %d", cfg.Checkout.TokenMaxUses)
	}
	if cfg.Checkout.JobBatchSize != 50 {
		t.Fatalf("unexpected job batch size: %d", cfg.Checkout.JobBatchSize)
	}
	if cfg.SMTP.MaxRetries != 4 {
		t.Fatalf("unexpected email max retries: %d", cfg.SMTP.MaxRetries)
	}
	if cfg.Jobs.EmailResendInterval != 30*time.Minute {
		t.Fatalf("unexpected resend interval: %v", cfg.Jobs.EmailResendInterval)
	}
	if cfg.Notify.Workers != 4 || cfg.Notify.QueueSize != 128 {
		t.Fatalf("unexpected notify config: %+v", cfg.Notify)
	}
}
