package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	AppEnv        string
	Port          string
	PublicBaseURL string

	DBDriver   string // postgres, mysql or sqlite
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	JWTKey    string
	SaltRound int

	StorageDriver string // local or gcs
	StorageDir    string
	GCSBucket     string

	CertificatePrefix        string
	CertificateIssueAttempts int
	CertificateMaxRenderJobs int

	PdfWorkerConcurrency  int
	PdfWorkerPollInterval time.Duration
	PdfJobMaxAttempts     int
	PdfJobRetryDelay      time.Duration
	PdfJobStaleAfter      time.Duration

	MailDriver     string // smtp, sendgrid or log
	EmailSender    string
	SMTPHost       string
	SMTPPort       string
	SMTPPassword   string
	SendgridApiKey string

	CertificateWebhookURL string

	RedisAddr      string
	VerifyCacheTTL time.Duration
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	AppConfig = &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          getEnv("PORT", "3000"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "learnhub"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTKey:    getEnv("JWT_SECRET_KEY", "defaultSecret"),
		SaltRound: getEnvInt("SALT_ROUND", 10),

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", "local")),
		StorageDir:    getEnv("STORAGE_DIR", "./storage"),
		GCSBucket:     getEnv("GCS_BUCKET", ""),

		CertificatePrefix:        getEnv("CERTIFICATE_PREFIX", "CERT"),
		CertificateIssueAttempts: getEnvInt("CERTIFICATE_ISSUE_ATTEMPTS", 3),
		CertificateMaxRenderJobs: getEnvInt("CERTIFICATE_MAX_RENDER_JOBS", 3),

		PdfWorkerConcurrency:  getEnvInt("PDF_WORKER_CONCURRENCY", 2),
		PdfWorkerPollInterval: getEnvDuration("PDF_WORKER_POLL_INTERVAL", 2*time.Second),
		PdfJobMaxAttempts:     getEnvInt("PDF_JOB_MAX_ATTEMPTS", 5),
		PdfJobRetryDelay:      getEnvDuration("PDF_JOB_RETRY_DELAY", 30*time.Second),
		PdfJobStaleAfter:      getEnvDuration("PDF_JOB_STALE_AFTER", 10*time.Minute),

		MailDriver:     strings.ToLower(getEnv("MAIL_DRIVER", "log")),
		EmailSender:    getEnv("EMAIL_SENDER", "no-reply@learnhub.local"),
		SMTPHost:       getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:       getEnv("SMTP_PORT", "587"),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		SendgridApiKey: getEnv("SENDGRID_API_KEY", ""),

		CertificateWebhookURL: getEnv("CERTIFICATE_WEBHOOK_URL", ""),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		VerifyCacheTTL: getEnvDuration("VERIFY_CACHE_TTL", 10*time.Minute),
	}

	// Validate critical configuration
	if AppConfig.JWTKey == "defaultSecret" {
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}
	if AppConfig.CertificateIssueAttempts < 1 {
		AppConfig.CertificateIssueAttempts = 1
	}
	if AppConfig.PdfWorkerConcurrency < 1 {
		AppConfig.PdfWorkerConcurrency = 1
	}

	return AppConfig
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}

// getEnvDuration accepts Go duration strings ("30s", "5m")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to duration: %v", key, err)
		return defaultValue
	}
	return d
}
