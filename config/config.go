package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	MySQL             MySQLConfig
	Redis             RedisConfig
	Kafka             KafkaConfig
	Log               LogConfig
	InternalEndpoints InternalEndpointsConfig
	Auth              AuthConfig
	Midtrans          MidtransConfig
	Checkout          CheckoutConfig
	Tasks             TasksConfig
	Jobs              JobsConfig
}

type AppConfig struct {
	ServiceName string
	APIKey      string
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

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers           []string
	EmailTopic        string
	ReconnectInterval time.Duration
}

type LogConfig struct {
	Level string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

type AuthConfig struct {
	JWTSecret string
}

type MidtransConfig struct {
	ServerKey           string
	ClientKey           string
	IsProduction        bool
	BaseURL             string
	HTTPTimeout         time.Duration
	FrontendCallbackURL string
}

// CheckoutConfig holds the pricing and expiry settings applied to every checkout.
type CheckoutConfig struct {
	TaxRate            decimal.Decimal
	PlatformFeeRate    decimal.Decimal
	ExpiryDuration     time.Duration
	GatewayTimeout     time.Duration
	OrderIDPrefix      string
	Currency           string
	LockTTL            time.Duration
	RateLimitWindow    time.Duration
	SweepBatchSize     int32
	NotificationsLimit int32
}

type TasksConfig struct {
	BatchSize         int32
	Lease             time.Duration
	ExpiryMaxAttempts int32
	BackoffBase       time.Duration
	BackoffMax        time.Duration
}

type JobsConfig struct {
	TasksInterval       time.Duration
	ExpireSweepInterval time.Duration
	TasksCron           string
	ExpireSweepCron     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "course-checkout-service"),
			APIKey:      getEnv("APP_API_KEY", ""),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:           getListEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			EmailTopic:        getEnv("KAFKA_EMAIL_TOPIC", "lms.email.jobs"),
			ReconnectInterval: getSecondsEnv("KAFKA_RECONNECT_SECONDS", 30*time.Second),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9090"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Midtrans: MidtransConfig{
			ServerKey:           getEnv("MIDTRANS_SERVER_KEY", ""),
			ClientKey:           getEnv("MIDTRANS_CLIENT_KEY", ""),
			IsProduction:        getBoolEnv("MIDTRANS_IS_PRODUCTION", false),
			BaseURL:             getEnv("MIDTRANS_SNAP_BASE_URL", ""),
			HTTPTimeout:         getSecondsEnv("MIDTRANS_HTTP_TIMEOUT_SECONDS", 15*time.Second),
			FrontendCallbackURL: getEnv("FRONTEND_CALLBACK_URL", ""),
		},
		Checkout: CheckoutConfig{
			TaxRate:            getDecimalEnv("CHECKOUT_TAX_RATE", decimal.RequireFromString("0.11")),
			PlatformFeeRate:    getDecimalEnv("CHECKOUT_PLATFORM_FEE_RATE", decimal.RequireFromString("0.10")),
			ExpiryDuration:     getHoursEnv("CHECKOUT_EXPIRY_HOURS", 24*time.Hour),
			GatewayTimeout:     getSecondsEnv("MIDTRANS_HTTP_TIMEOUT_SECONDS", 15*time.Second),
			OrderIDPrefix:      getEnv("CHECKOUT_ORDER_ID_PREFIX", "LMS"),
			Currency:           getEnv("CHECKOUT_CURRENCY", "IDR"),
			LockTTL:            getSecondsEnv("CHECKOUT_LOCK_TTL_SECONDS", 30*time.Second),
			RateLimitWindow:    getSecondsEnv("CHECKOUT_RATE_LIMIT_WINDOW_SECONDS", 5*time.Second),
			SweepBatchSize:     int32(getIntEnv("CHECKOUT_SWEEP_BATCH_SIZE", 100)),
			NotificationsLimit: int32(getIntEnv("CHECKOUT_NOTIFICATIONS_LIMIT", 100)),
		},
		Tasks: TasksConfig{
			BatchSize:         int32(getIntEnv("TASKS_BATCH_SIZE", 50)),
			Lease:             getSecondsEnv("TASKS_LEASE_SECONDS", 60*time.Second),
			ExpiryMaxAttempts: int32(getIntEnv("TASKS_EXPIRY_MAX_ATTEMPTS", 5)),
			BackoffBase:       getSecondsEnv("TASKS_BACKOFF_BASE_SECONDS", 10*time.Second),
			BackoffMax:        getMinutesEnv("TASKS_BACKOFF_MAX_MINUTES", 30*time.Minute),
		},
		Jobs: JobsConfig{
			TasksInterval:       getSecondsEnv("JOBS_TASKS_INTERVAL_SECONDS", 5*time.Second),
			ExpireSweepInterval: getMinutesEnv("JOBS_EXPIRE_SWEEP_INTERVAL_MINUTES", 10*time.Minute),
			TasksCron:           getEnv("JOBS_TASKS_CRON", "*/5 * * * * *"),
			ExpireSweepCron:     getEnv("JOBS_EXPIRE_SWEEP_CRON", "0 */10 * * * *"),
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

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	items := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

// getDecimalEnv parses fractional rates such as "0.11"; negative values fall back to the default.
func getDecimalEnv(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil && !d.IsNegative() {
			return d
		}
	}
	return defaultValue
}

func getHoursEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if hours, err := strconv.Atoi(value); err == nil {
			return time.Duration(hours) * time.Hour
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
