package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string

	PagarmeSecretKey string
	PagarmeBaseURL   string
	GatewayTimeout   time.Duration

	WebhookToken string
	// WebhookAckOnProcessingError acks the gateway with 200 when the payload
	// was stored but reconciliation hit a storage failure.
	WebhookAckOnProcessingError bool

	JWTSecret         string
	CORSAllowedOrigin string

	KafkaBrokers []string
	KafkaTopic   string

	CatalogCacheSize int
}

var ErrMissingDBHost = errors.New("environment variables not loaded properly: DB_HOST is empty")

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:                      os.Getenv("DB_HOST"),
		DBUser:                      os.Getenv("DB_USER"),
		DBPassword:                  os.Getenv("DB_PASSWORD"),
		DBName:                      os.Getenv("DB_NAME"),
		DBPort:                      os.Getenv("DB_PORT"),
		AppPort:                     getEnv("APP_PORT", "8080"),
		AppEnv:                      os.Getenv("APP_ENV"),
		PagarmeSecretKey:            os.Getenv("PAGARME_SECRET_KEY"),
		PagarmeBaseURL:              getEnv("PAGARME_BASE_URL", "https://api.pagar.me/core/v5"),
		GatewayTimeout:              time.Duration(getEnvInt("PAGARME_TIMEOUT_SECONDS", 15)) * time.Second,
		WebhookToken:                os.Getenv("WEBHOOK_TOKEN"),
		WebhookAckOnProcessingError: getEnvBool("WEBHOOK_ACK_ON_PROCESSING_ERROR", false),
		JWTSecret:                   os.Getenv("JWT_SECRET"),
		CORSAllowedOrigin:           getEnv("CORS_ALLOWED_ORIGIN", "http://localhost:3000"),
		KafkaBrokers:                splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:                  getEnv("KAFKA_TOPIC", "order-events"),
		CatalogCacheSize:            getEnvInt("CATALOG_CACHE_SIZE", 1024),
	}

	if cfg.DBHost == "" {
		return nil, ErrMissingDBHost
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
