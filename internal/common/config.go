package common

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	Render   RenderConfig
	Storage  StorageConfig
}

// DatabaseConfig holds configuration for the optional job ledger.
// An empty DSN disables the ledger.
type DatabaseConfig struct {
	Driver           string `validate:"oneof=postgres sqlite"`
	DSN              string
	MaxConns         int32         `validate:"min=1"`
	MinConns         int32         `validate:"min=0,ltefield=MaxConns"`
	MaxConnLifetime  time.Duration `validate:"min=0"`
	MaxConnIdleTime  time.Duration `validate:"min=0"`
	DialTimeout      time.Duration `validate:"required"`
	StatementTimeout time.Duration `validate:"min=0"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr       string `validate:"required"`
	MaxUploadBytes int    `validate:"min=1"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	TesseractBin  string        `validate:"required"`
	TesseractLang string        `validate:"required"`
	TessdataDir   string
	PSM           int           `validate:"min=0,max=13"`
	Timeout       time.Duration `validate:"required"`
}

// RenderConfig holds output document configuration
type RenderConfig struct {
	OutputFilename string `validate:"required"`
}

// StorageConfig configures where batch runs write rendered documents.
// A bucket name switches the sink to Google Cloud Storage.
type StorageConfig struct {
	GCSBucket string
	GCSPrefix string
	LocalDir  string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "postgres"),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:       getEnv("GRPC_ADDR", ":8080"),
			MaxUploadBytes: getEnvAsInt("MAX_UPLOAD_BYTES", 32<<20),
		},
		OCR: OCRConfig{
			TesseractBin:  getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			PSM:           getEnvAsInt("TESSERACT_PSM", 0),
			Timeout:       getEnvAsDuration("OCR_TIMEOUT", 60*time.Second),
		},
		Render: RenderConfig{
			OutputFilename: getEnv("OUTPUT_FILENAME", "invoice_output.pdf"),
		},
		Storage: StorageConfig{
			GCSBucket: getEnv("GCS_BUCKET", ""),
			GCSPrefix: getEnv("GCS_PREFIX", ""),
			LocalDir:  getEnv("OUTPUT_DIR", "./out"),
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// LedgerEnabled reports whether a job ledger database is configured.
func (c *Config) LedgerEnabled() bool {
	return c.Database.DSN != ""
}

// Validate checks struct constraints on the loaded configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return NewAppError("CONFIG_ERROR", "invalid configuration", err)
	}
	return nil
}
