package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	OCR        OCRConfig
	Extraction ExtractionConfig
	Queue      QueueConfig
	Ingest     IngestConfig
	Log        LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // postgres | sqlite
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
	HTTPAddr string
}

// OCRConfig holds OCR provider configuration. An empty endpoint disables image OCR.
type OCRConfig struct {
	AzureEndpoint string
	AzureKey      string
	Language      string
	Timeout       time.Duration
	// Local fallbacks; empty disables them.
	Tesseract     string
	TesseractLang string
	Pdftotext     string
}

// ExtractionConfig holds engine configuration
type ExtractionConfig struct {
	PolicyFile string
	// ReviewThreshold overrides the policy file when set (>= 0).
	ReviewThreshold float64
	Parallel        bool
	CacheSize       int
}

// QueueConfig holds worker queue configuration
type QueueConfig struct {
	Workers        int
	Size           int
	ProcessTimeout time.Duration
}

// IngestConfig holds watch-folder configuration
type IngestConfig struct {
	WatchDirs []string
	Debounce  time.Duration
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string // text | json
}

// LoadConfig loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment wins.
func LoadConfig() *Config {
	if err := godotenv.Load(); err == nil {
		slog.Debug("config.dotenv.loaded")
	}
	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "postgres"),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
			HTTPAddr: getEnv("HTTP_ADDR", ":8081"),
		},
		OCR: OCRConfig{
			AzureEndpoint: getEnv("AZURE_VISION_ENDPOINT", ""),
			AzureKey:      getEnv("AZURE_VISION_KEY", ""),
			Language:      getEnv("OCR_LANGUAGE", "fr"),
			Timeout:       getEnvAsDuration("OCR_TIMEOUT", 45*time.Second),
			Tesseract:     getEnv("TESSERACT_BIN", ""),
			TesseractLang: getEnv("TESSERACT_LANG", "fra"),
			Pdftotext:     getEnv("PDFTOTEXT_BIN", ""),
		},
		Extraction: ExtractionConfig{
			PolicyFile:      getEnv("EXTRACTION_POLICY_FILE", ""),
			ReviewThreshold: getEnvAsFloat64("REVIEW_THRESHOLD", -1),
			Parallel:        getEnvAsBool("EXTRACTION_PARALLEL", true),
			CacheSize:       getEnvAsInt("EXTRACTION_CACHE_SIZE", 1024),
		},
		Queue: QueueConfig{
			Workers:        getEnvAsInt("QUEUE_WORKERS", 4),
			Size:           getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("PROCESS_TIMEOUT", 3*time.Minute),
		},
		Ingest: IngestConfig{
			WatchDirs: getEnvAsList("WATCH_DIRS"),
			Debounce:  getEnvAsDuration("WATCH_DEBOUNCE", 500*time.Millisecond),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" && c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR or HTTP_ADDR is required", ErrInvalidInput)
	}
	if (c.OCR.AzureEndpoint == "") != (c.OCR.AzureKey == "") {
		return NewAppError("CONFIG_ERROR", "AZURE_VISION_ENDPOINT and AZURE_VISION_KEY must be set together", ErrInvalidInput)
	}
	if c.Extraction.ReviewThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "REVIEW_THRESHOLD must be within [0,1]", ErrInvalidInput)
	}
	return nil
}

// ParseLevel maps LOG_LEVEL onto slog levels, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewLogger builds the process logger from LogConfig.
func NewLogger(cfg LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
