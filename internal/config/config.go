package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type MySQL struct {
	User            string
	Password        string
	Host            string
	Port            string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type Redis struct {
	Addr     string
	DB       int
	OrderTTL time.Duration
}

type RabbitMQ struct {
	URL      string
	Exchange string
}

type Telemetry struct {
	Enabled      bool
	OTLPEndpoint string
	Insecure     bool
	ServiceName  string
}

type Config struct {
	Port              string
	DBDriver          string
	MySQL             MySQL
	Redis             Redis
	RabbitMQ          RabbitMQ
	Telemetry         Telemetry
	JWTSecret         string
	ReturnWindow      time.Duration
	LowStockThreshold int
	ShutdownTimeout   time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug(".env not loaded", "error", err)
	}
	return Config{
		Port:     getEnvOrDefault("PORT", "8080"),
		DBDriver: strings.ToLower(getEnvOrDefault("DB_DRIVER", "mysql")),
		MySQL: MySQL{
			User:            getEnvOrDefault("MYSQL_USER", "root"),
			Password:        getEnvOrDefault("MYSQL_PASSWORD", ""),
			Host:            getEnvOrDefault("MYSQL_HOST", "localhost"),
			Port:            getEnvOrDefault("MYSQL_PORT", "3306"),
			Database:        getEnvOrDefault("MYSQL_DATABASE", "storefront"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 20),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME_MINUTES", 5, time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_MINUTES", 1, time.Minute),
		},
		Redis: Redis{
			Addr:     getEnvOrDefault("REDIS_ADDR", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			OrderTTL: getDurationEnv("ORDER_CACHE_TTL_SECONDS", 30, time.Second),
		},
		RabbitMQ: RabbitMQ{
			URL:      getEnvOrDefault("RABBITMQ_URL", ""),
			Exchange: getEnvOrDefault("RABBITMQ_EXCHANGE", "order.exchange"),
		},
		Telemetry: Telemetry{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:     getBoolEnv("OTEL_INSECURE", true),
			ServiceName:  getEnvOrDefault("OTEL_SERVICE_NAME", "storefront"),
		},
		JWTSecret:         getEnvOrDefault("JWT_SECRET", ""),
		ReturnWindow:      getDurationEnv("RETURN_WINDOW_DAYS", 7, 24*time.Hour),
		LowStockThreshold: getIntEnv("LOW_STOCK_THRESHOLD", 10),
		ShutdownTimeout:   getDurationEnv("SHUTDOWN_TIMEOUT_SECONDS", 10, time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}
