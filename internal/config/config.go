package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env                 string
	LogLevel            string
	HTTPAddr            string
	DatabaseURL         string
	TerminalJWTSecret   string
	CorsAllowedOrigins  []string
	WSHeartbeatInterval time.Duration
	BusinessTimezone    string

	BusinessName    string
	BusinessAddress string
	MenuFile        string

	PrinterHost           string
	PrinterPort           int
	PrinterConnectTimeout time.Duration
	PrinterQueueSize      int
	PrinterJobTimeout     time.Duration

	MirrorDriver    string
	MirrorURL       string
	MirrorTimeout   time.Duration
	MirrorQueueSize int
	RabbitMQURL     string
	NATSURL         string

	LayoutURL     string
	LayoutTimeout time.Duration

	DefaultGratuityPercent float64
	DefaultDiscountPercent float64

	ObjectStoreEndpoint        string
	ObjectStoreRegion          string
	ObjectStoreAccessKeyID     string
	ObjectStoreSecretAccessKey string
	ObjectStoreBucket          string
	ObjectStorePublicBaseURL   string
	ObjectStoreStorageClass    string
}

func Load() Config {
	cfg := Config{
		Env:                 getEnv("APP_ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", ""),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8086"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		TerminalJWTSecret:   getEnv("TERMINAL_JWT_SECRET", ""),
		CorsAllowedOrigins:  splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		WSHeartbeatInterval: getEnvDuration("WS_HEARTBEAT_INTERVAL", 30*time.Second),
		BusinessTimezone:    getEnv("BUSINESS_TIMEZONE", "Local"),

		BusinessName:    getEnv("BUSINESS_NAME", "Tableside"),
		BusinessAddress: getEnv("BUSINESS_ADDRESS", ""),
		MenuFile:        getEnv("MENU_FILE", ""),

		PrinterHost:           getEnv("PRINTER_HOST", ""),
		PrinterPort:           int(getEnvInt64("PRINTER_PORT", 9100)),
		PrinterConnectTimeout: getEnvDuration("PRINTER_CONNECT_TIMEOUT", 5*time.Second),
		PrinterQueueSize:      int(getEnvInt64("PRINTER_QUEUE_SIZE", 32)),
		PrinterJobTimeout:     getEnvDuration("PRINTER_JOB_TIMEOUT", 15*time.Second),

		MirrorDriver:    getEnv("MIRROR_DRIVER", "none"),
		MirrorURL:       getEnv("MIRROR_URL", ""),
		MirrorTimeout:   getEnvDuration("MIRROR_TIMEOUT", 10*time.Second),
		MirrorQueueSize: int(getEnvInt64("MIRROR_QUEUE_SIZE", 64)),
		RabbitMQURL:     getEnv("RABBITMQ_URL", ""),
		NATSURL:         getEnv("NATS_URL", ""),

		LayoutURL:     getEnv("LAYOUT_URL", ""),
		LayoutTimeout: getEnvDuration("LAYOUT_TIMEOUT", 10*time.Second),

		DefaultGratuityPercent: getEnvFloat("DEFAULT_GRATUITY_PERCENT", 0),
		DefaultDiscountPercent: getEnvFloat("DEFAULT_DISCOUNT_PERCENT", 0),

		// Object store (MinIO / R2 / S3-compatible)
		ObjectStoreEndpoint:        getEnv("OBJECT_STORE_ENDPOINT", ""),
		ObjectStoreRegion:          getEnv("OBJECT_STORE_REGION", "auto"),
		ObjectStoreAccessKeyID:     getEnv("OBJECT_STORE_ACCESS_KEY_ID", ""),
		ObjectStoreSecretAccessKey: getEnv("OBJECT_STORE_SECRET_ACCESS_KEY", ""),
		ObjectStoreBucket:          getEnv("OBJECT_STORE_BUCKET", ""),
		ObjectStorePublicBaseURL:   getEnv("OBJECT_STORE_PUBLIC_BASE_URL", ""),
		ObjectStoreStorageClass:    getEnv("OBJECT_STORE_STORAGE_CLASS", ""),
	}

	if cfg.PrinterPort <= 0 || cfg.PrinterPort > 65535 {
		cfg.PrinterPort = 9100
	}
	if cfg.PrinterQueueSize <= 0 {
		cfg.PrinterQueueSize = 32
	}
	if cfg.MirrorQueueSize <= 0 {
		cfg.MirrorQueueSize = 64
	}

	// The amqp and nats drivers fall back to their broker URLs.
	if cfg.MirrorURL == "" {
		switch strings.ToLower(cfg.MirrorDriver) {
		case "amqp":
			cfg.MirrorURL = cfg.RabbitMQURL
		case "nats":
			cfg.MirrorURL = cfg.NATSURL
		}
	}

	return cfg
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
