package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates runtime configuration grouped by concern.
type Config struct {
	ServiceName string
	HTTP        HTTPConfig
	Square      SquareConfig
	Booking     BookingConfig
	CORS        CORSConfig
	Store       StoreConfig
	Kafka       KafkaConfig
}

type HTTPConfig struct {
	Addr string
}

// SquareConfig carries the processor credential and environment selector.
// Environment is "sandbox" or "production" and picks the connect base URL.
type SquareConfig struct {
	AccessToken string
	Environment string
	LocationID  string
}

// BookingConfig holds the storefront-facing business settings: the site the
// customer is redirected back to, the currency, and the server-side floors
// applied to caller-proposed prices and durations.
type BookingConfig struct {
	SiteURL       string
	Currency      string
	MinPrice      float64
	MinMinutes    int
	SearchWindow  time.Duration
	VerboseErrors bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

// StoreConfig selects the session store backend. "memory" is the default;
// "postgres" enables the durable backend using the ARK_DB_* settings.
type StoreConfig struct {
	Backend  string
	Database DatabaseConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

type KafkaConfig struct {
	Brokers       []string
	PaymentsTopic string
}

// Load reads configuration from environment variables, applying sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		ServiceName: getEnv("SERVICE_NAME", "ark-payments"),
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_LISTEN_ADDR", ":3000"),
		},
		Square: SquareConfig{
			AccessToken: os.Getenv("SQUARE_ACCESS_TOKEN"),
			Environment: getEnv("SQUARE_ENV", "sandbox"),
			LocationID:  os.Getenv("SQUARE_LOCATION_ID"),
		},
		Booking: BookingConfig{
			SiteURL:       getEnv("SITE_BASE_URL", "http://localhost:3000"),
			Currency:      getEnv("CURRENCY", "USD"),
			VerboseErrors: getEnv("VERBOSE_ERRORS", "") == "1",
		},
		CORS: CORSConfig{
			AllowedOrigins: splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "")),
		},
		Store: StoreConfig{
			Backend: getEnv("SESSION_STORE", "memory"),
		},
		Kafka: KafkaConfig{
			Brokers:       splitAndTrim(getEnv("KAFKA_BROKERS", "")),
			PaymentsTopic: getEnv("KAFKA_PAYMENTS_TOPIC", "ark.payments.v1"),
		},
	}

	minPrice, err := parseFloat("MIN_PRICE", "120")
	if err != nil {
		return Config{}, err
	}
	cfg.Booking.MinPrice = minPrice

	minMinutes, err := parseInt("MIN_MINUTES", "60")
	if err != nil {
		return Config{}, err
	}
	cfg.Booking.MinMinutes = minMinutes

	windowHours, err := parseInt("SEARCH_WINDOW_HOURS", "24")
	if err != nil {
		return Config{}, err
	}
	cfg.Booking.SearchWindow = time.Duration(windowHours) * time.Hour

	dbPort, err := parseInt("ARK_DB_PORT", "5432")
	if err != nil {
		return Config{}, err
	}
	cfg.Store.Database = DatabaseConfig{
		Host:     getEnv("ARK_DB_HOST", "localhost"),
		Port:     dbPort,
		Database: getEnv("ARK_DB_NAME", "arkpayments"),
		User:     getEnv("ARK_DB_USER", "arkpayments"),
		Password: os.Getenv("ARK_DB_PASSWORD"),
	}

	return cfg, nil
}

func parseInt(key, fallback string) (int, error) {
	raw := getEnv(key, fallback)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func parseFloat(key, fallback string) (float64, error) {
	raw := getEnv(key, fallback)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
