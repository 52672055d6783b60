package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env                string
	Port               int
	DbUser             string
	DbPassword         string
	DbHost             string
	DbName             string
	SSLMode            string
	DbPort             string
	DbMaxConns         int32
	WebpayBaseURL      string
	WebpayAPIKeyID     string
	WebpayAPIKeySecret string
	WebpayTimeout      time.Duration
	WebpayReturnURL    string
	WebhookSecret      string
	StockBaseURL       string
	StockBranchID      string
	StockTimeout       time.Duration
	AmountMin          int64
	AmountMax          int64
	TransactionTTL     time.Duration
	KafkaBrokers       []string
	KafkaTopic         string
	SweepInterval      time.Duration
}

func Load() (*Config, error) {
	// Load .env file (only in development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	var problems []string
	cfg := &Config{
		Env:                getEnv("ENV", "production"),
		Port:               getInt("PORT", 8080, &problems),
		DbUser:             os.Getenv("DB_USER"),
		DbPassword:         os.Getenv("DB_PASSWORD"),
		DbHost:             getEnv("DB_HOST", "localhost"),
		DbName:             os.Getenv("DB_NAME"),
		DbPort:             getEnv("DB_PORT", "5432"),
		SSLMode:            getEnv("SSL_MODE", "disable"),
		DbMaxConns:         int32(getInt("DB_MAX_CONNS", 25, &problems)),
		WebpayBaseURL:      getEnv("WEBPAY_BASE_URL", "https://webpay3gint.transbank.cl"),
		WebpayAPIKeyID:     os.Getenv("WEBPAY_API_KEY_ID"),
		WebpayAPIKeySecret: os.Getenv("WEBPAY_API_KEY_SECRET"),
		WebpayTimeout:      getDuration("WEBPAY_TIMEOUT", 30*time.Second, &problems),
		WebpayReturnURL:    os.Getenv("WEBPAY_RETURN_URL"),
		WebhookSecret:      os.Getenv("WEBHOOK_SECRET"),
		StockBaseURL:       getEnv("STOCK_BASE_URL", "http://localhost:8081"),
		StockBranchID:      getEnv("STOCK_BRANCH_ID", "1"),
		StockTimeout:       getDuration("STOCK_TIMEOUT", 5*time.Second, &problems),
		AmountMin:          getInt64("AMOUNT_MIN", 50, &problems),
		AmountMax:          getInt64("AMOUNT_MAX", 999999999, &problems),
		TransactionTTL:     getDuration("TRANSACTION_TTL", 10*time.Minute, &problems),
		KafkaBrokers:       splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "transactions.lifecycle"),
		SweepInterval:      getDuration("SWEEP_INTERVAL", time.Minute, &problems),
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}

// Validate reports every missing or inconsistent setting needed to serve traffic.
func (c *Config) Validate() error {
	var problems []string
	if c.DbName == "" {
		problems = append(problems, "DB_NAME is required")
	}
	if c.WebpayAPIKeyID == "" || c.WebpayAPIKeySecret == "" {
		problems = append(problems, "WEBPAY_API_KEY_ID and WEBPAY_API_KEY_SECRET are required")
	}
	if c.AmountMin <= 0 || c.AmountMin > c.AmountMax {
		problems = append(problems, fmt.Sprintf("amount range [%d, %d] is invalid", c.AmountMin, c.AmountMax))
	}
	if c.DbMaxConns <= 0 {
		problems = append(problems, "DB_MAX_CONNS must be positive")
	}
	if c.TransactionTTL <= 0 {
		problems = append(problems, "TRANSACTION_TTL must be positive")
	}
	if c.StockTimeout <= 0 || c.WebpayTimeout <= 0 {
		problems = append(problems, "STOCK_TIMEOUT and WEBPAY_TIMEOUT must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s&connect_timeout=180",
		c.DbUser,
		c.DbPassword,
		c.DbHost,
		c.DbPort,
		c.DbName,
		c.SSLMode,
	)
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int, problems *[]string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("%s: %q is not an integer", key, v))
		return fallback
	}
	return n
}

func getInt64(key string, fallback int64, problems *[]string) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("%s: %q is not an integer", key, v))
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration, problems *[]string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("%s: %q is not a duration", key, v))
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
