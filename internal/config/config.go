package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser     string
	DBPassword string
	DBName     string
	DBHost     string
	DBPort     string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	BotToken  string
	ChannelID int64
	AdminID   int64

	MerchantAccount  string
	MerchantSecret   string
	MerchantPassword string
	MerchantDomain   string

	BaseWebhookURL string
	WebhookPath    string
	ListenPort     string
	// Optional CIDR allowlist for the payment webhook; empty disables filtering.
	WebhookAllowedCIDRs []string

	SweepInterval time.Duration
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "gatekeeper_bot"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		BotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		ChannelID: getEnvInt64("CHANNEL_ID", 0),
		AdminID:   getEnvInt64("ADMIN_ID", 0),

		MerchantAccount:  getEnv("MERCHANT_ACCOUNT", ""),
		MerchantSecret:   getEnv("MERCHANT_SECRET", ""),
		MerchantPassword: getEnv("MERCHANT_PASSWORD", ""),
		MerchantDomain:   getEnv("MERCHANT_DOMAIN", "t.me/gatekeeper_bot"),

		BaseWebhookURL:      getEnv("BASE_WEBHOOK_URL", ""),
		WebhookPath:         getEnv("WEBHOOK_PATH", "/wayforpay/callback"),
		ListenPort:          getEnv("PORT", "10000"),
		WebhookAllowedCIDRs: getEnvList("WEBHOOK_ALLOWED_CIDRS"),

		SweepInterval: getEnvDuration("SWEEP_INTERVAL", 12*time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default", key, value)
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default", key, value)
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
