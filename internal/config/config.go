package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort        string
	GRPCPort        string
	LogLevel        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	MongoURI         string
	MongoDBName      string
	MongoMaxPoolSize int

	RedisAddr     string
	RedisPassword string
	SnapshotTTL   time.Duration

	SessionIdleTTL time.Duration

	PostgresHost       string
	PostgresPort       int
	PostgresUser       string
	PostgresPassword   string
	PostgresDB         string
	PostgresMigrations string

	CatalogDBPath     string
	CatalogMigrations string

	KafkaBrokers []string
	KafkaTopic   string

	JWTSecret string

	OTLPEndpoint string
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		GRPCPort:        getEnv("GRPC_PORT", "50060"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:      getEnv("MONGO_DB_NAME", "storefront"),
		MongoMaxPoolSize: getInt("MONGO_MAX_POOL_SIZE", 100),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SnapshotTTL:   getDuration("SNAPSHOT_TTL", 30*24*time.Hour),

		SessionIdleTTL: getDuration("SESSION_IDLE_TTL", 30*time.Minute),

		PostgresHost:       getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:       getInt("POSTGRES_PORT", 5432),
		PostgresUser:       getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:   getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:         getEnv("POSTGRES_DB", "storefront"),
		PostgresMigrations: getEnv("POSTGRES_MIGRATIONS", "internal/repository/migrations"),

		CatalogDBPath:     getEnv("CATALOG_DB_PATH", "catalog.db"),
		CatalogMigrations: getEnv("CATALOG_MIGRATIONS", "internal/catalog/migrations"),

		KafkaBrokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "checkout-completed"),

		JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-me"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}
