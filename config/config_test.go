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
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/lms?parseTime=true")
	for _, key := range []string{
		"CHECKOUT_TAX_RATE", "CHECKOUT_PLATFORM_FEE_RATE", "CHECKOUT_EXPIRY_HOURS",
		"CHECKOUT_ORDER_ID_PREFIX", "CHECKOUT_RATE_LIMIT_WINDOW_SECONDS", "KAFKA_BROKERS",
		"MIDTRANS_IS_PRODUCTION",
	} {
		unsetEnv(t, key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Checkout.TaxRate.String() != "0.11" || cfg.Checkout.PlatformFeeRate.String() != "0.1" {
		t.Fatalf("unexpected default rates: tax=%s fee=%s", cfg.Checkout.TaxRate, cfg.Checkout.PlatformFeeRate)
	}
	if cfg.Checkout.ExpiryDuration != 24*time.Hour {
		t.Fatalf("unexpected expiry duration: %v", cfg.Checkout.ExpiryDuration)
	}
	if cfg.Checkout.OrderIDPrefix != "LMS" || cfg.Checkout.Currency != "IDR" {
		t.Fatalf("unexpected order prefix/currency: %s %s", cfg.Checkout.OrderIDPrefix, cfg.Checkout.Currency)
	}
	if cfg.Checkout.RateLimitWindow != 5*time.Second {
		t.Fatalf("unexpected rate limit window: %v", cfg.Checkout.RateLimitWindow)
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "localhost:9092" {
		t.Fatalf("unexpected kafka brokers: %v", cfg.Kafka.Brokers)
	}
	if cfg.Kafka.ReconnectInterval != 30*time.Second {
		t.Fatalf("unexpected kafka reconnect interval: %v", cfg.Kafka.ReconnectInterval)
	}
	if cfg.Midtrans.IsProduction {
		t.Fatal("expected sandbox mode by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/lms?parseTime=true")
	setEnv(t, "APP_SERVICE_NAME", "checkout-test")
	setEnv(t, "HTTP_PORT", "8181")
	setEnv(t, "GRPC_PORT", "9191")
	setEnv(t, "MYSQL_MAX_OPEN_CONNS", "20")
	setEnv(t, "MYSQL_CONN_MAX_LIFETIME_MINUTES", "40")
	setEnv(t, "CHECKOUT_TAX_RATE", "0.12")
	setEnv(t, "CHECKOUT_PLATFORM_FEE_RATE", "-1")
	setEnv(t, "CHECKOUT_EXPIRY_HOURS", "2")
	setEnv(t, "KAFKA_BROKERS", "k1:9092, k2:9092,")
	setEnv(t, "MIDTRANS_IS_PRODUCTION", "true")
	setEnv(t, "MIDTRANS_HTTP_TIMEOUT_SECONDS", "3")
	setEnv(t, "TASKS_EXPIRY_MAX_ATTEMPTS", "7")
	setEnv(t, "TASKS_BACKOFF_MAX_MINUTES", "9")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.App.ServiceName != "checkout-test" {
		t.Fatalf("unexpected app service name: %s", cfg.App.ServiceName)
	}
	if cfg.HTTP.Port != "8181" || cfg.GRPC.Port != "9191" {
		t.Fatalf("unexpected ports: http=%s grpc=%s", cfg.HTTP.Port, cfg.GRPC.Port)
	}
	if cfg.MySQL.MaxOpenConns != 20 || cfg.MySQL.ConnMaxLifetime != 40*time.Minute {
		t.Fatalf("unexpected mysql config: %+v", cfg.MySQL)
	}
	if cfg.Checkout.TaxRate.String() != "0.12" {
		t.Fatalf("unexpected tax rate: %s", cfg.Checkout.TaxRate)
	}
	if cfg.Checkout.PlatformFeeRate.String() != "0.1" {
		t.Fatalf("negative fee rate should fall back to default, got %s", cfg.Checkout.PlatformFeeRate)
	}
	if cfg.Checkout.ExpiryDuration != 2*time.Hour {
		t.Fatalf("unexpected expiry duration: %v", cfg.Checkout.ExpiryDuration)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected kafka brokers: %v", cfg.Kafka.Brokers)
	}
	if !cfg.Midtrans.IsProduction || cfg.Midtrans.HTTPTimeout != 3*time.Second {
		t.Fatalf("unexpected midtrans config: %+v", cfg.Midtrans)
	}
	if cfg.Tasks.ExpiryMaxAttempts != 7 || cfg.Tasks.BackoffMax != 9*time.Minute {
		t.Fatalf("unexpected tasks config: %+v", cfg.Tasks)
	}
}
