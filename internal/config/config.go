package config

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	TransportHTTP = "http"
	TransportSMTP = "smtp"
)

type Config struct {
	// Server
	Port string
	Env  string // development, production

	// Backends
	QABackendURL    string
	EmailBackendURL string
	EmailTransport  string // http, smtp

	// SMTP, used when EmailTransport is smtp
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPass     string
	SMTPFromName string

	// Panels
	UploadStepPercent  int
	UploadStepInterval time.Duration
	EmailResetDelay    time.Duration

	// Limits
	MaxUploadSizeMB    int
	RateLimitPerMinute int
	WorkspaceTTL       time.Duration
}

// Load reads configuration from a .env file (if present), the environment
// and command line flags, in increasing order of precedence.
func Load(args []string) (*Config, error) {
	// Load .env file if it exists (don't error if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	fs := flag.NewFlagSet("docchat", flag.ContinueOnError)
	fs.StringVar(&cfg.Port, "port", getEnv("PORT", "8080"), "Server port")
	fs.StringVar(&cfg.Env, "env", getEnv("ENV", "development"), "Environment (development, production)")
	fs.StringVar(&cfg.QABackendURL, "qa-url", getEnv("QA_BACKEND_URL", "https://busy-coding-challenge-1.onrender.com/chat-pdf/"), "Question answering endpoint")
	fs.StringVar(&cfg.EmailBackendURL, "email-url", getEnv("EMAIL_BACKEND_URL", "http://localhost:8000/send-email/"), "Email sending endpoint")

	cfg.EmailTransport = getEnv("EMAIL_TRANSPORT", TransportHTTP)
	cfg.SMTPHost = getEnv("SMTP_HOST", "smtp.gmail.com")
	cfg.SMTPPort = getEnvInt("SMTP_PORT", 587)
	cfg.SMTPUser = getEnv("SMTP_USER", "")
	cfg.SMTPPass = getEnv("SMTP_PASS", "")
	cfg.SMTPFromName = getEnv("SMTP_FROM_NAME", "")

	cfg.UploadStepPercent = getEnvInt("UPLOAD_STEP_PERCENT", 10)
	cfg.UploadStepInterval = getEnvDuration("UPLOAD_STEP_INTERVAL", 200*time.Millisecond)
	cfg.EmailResetDelay = getEnvDuration("EMAIL_RESET_DELAY", 3*time.Second)

	cfg.MaxUploadSizeMB = getEnvInt("MAX_UPLOAD_SIZE_MB", 50)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 60)
	cfg.WorkspaceTTL = getEnvDuration("WORKSPACE_TTL", 4*time.Hour)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validateURL("QA_BACKEND_URL", c.QABackendURL); err != nil {
		return err
	}

	switch c.EmailTransport {
	case TransportHTTP:
		if err := validateURL("EMAIL_BACKEND_URL", c.EmailBackendURL); err != nil {
			return err
		}
	case TransportSMTP:
		if c.SMTPHost == "" || c.SMTPUser == "" || c.SMTPPass == "" {
			return fmt.Errorf("SMTP_HOST, SMTP_USER and SMTP_PASS are required when EMAIL_TRANSPORT=smtp")
		}
	default:
		return fmt.Errorf("EMAIL_TRANSPORT must be %q or %q, got %q", TransportHTTP, TransportSMTP, c.EmailTransport)
	}

	if c.UploadStepPercent < 1 || c.UploadStepPercent > 100 {
		return fmt.Errorf("UPLOAD_STEP_PERCENT must be between 1 and 100")
	}
	if c.UploadStepInterval <= 0 || c.EmailResetDelay <= 0 || c.WorkspaceTTL <= 0 {
		return fmt.Errorf("UPLOAD_STEP_INTERVAL, EMAIL_RESET_DELAY and WORKSPACE_TTL must be positive")
	}
	if c.MaxUploadSizeMB < 1 {
		return fmt.Errorf("MAX_UPLOAD_SIZE_MB must be at least 1")
	}
	if c.RateLimitPerMinute < 1 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be at least 1")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", key, raw)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
