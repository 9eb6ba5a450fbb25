package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	StoreRedis = "redis"
	StoreFile  = "file"

	CatalogHTTP  = "http"
	CatalogMySQL = "mysql"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string
	LogLevel string

	CartStore string
	CartKey   string
	RedisAddr string
	CartDir   string

	Catalog        string
	CatalogURL     string
	CatalogTimeout time.Duration
	MySQLDSN       string

	NotificationBuffer int
}

// Load reads .env when present, then the process environment.
func Load(log logrus.FieldLogger) *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug(".env file not found, using system environment variables")
	}

	cfg := &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr: getEnv("GRPC_ADDR", ":50051"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		CartStore: getEnv("CART_STORE", StoreRedis),
		CartKey:   getEnv("CART_KEY", "@RocketShoes:cart"),
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		CartDir:   getEnv("CART_DIR", "./data"),

		Catalog:        getEnv("CATALOG", CatalogHTTP),
		CatalogURL:     getEnv("CATALOG_URL", "http://localhost:3333"),
		CatalogTimeout: getDuration(log, "CATALOG_TIMEOUT", 5*time.Second),
		MySQLDSN:       getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/rocketshoes?parseTime=true"),

		NotificationBuffer: getInt(log, "NOTIFICATION_BUFFER", 50),
	}

	log.WithFields(logrus.Fields{
		"store":   cfg.CartStore,
		"catalog": cfg.Catalog,
		"http":    cfg.HTTPAddr,
		"grpc":    cfg.GRPCAddr,
	}).Info("configuration loaded")
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(log logrus.FieldLogger, key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.WithField("key", key).Warnf("invalid integer %q, using %d", raw, defaultValue)
		return defaultValue
	}
	return v
}

func getDuration(log logrus.FieldLogger, key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.WithField("key", key).Warnf("invalid duration %q, using %s", raw, defaultValue)
		return defaultValue
	}
	return v
}
