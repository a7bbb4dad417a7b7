package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Admin     AdminConfig
	Timer     TimerConfig
	Sheets    SheetsConfig
	AWS       AWSConfig
	Export    ExportConfig
	Log       LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	RunWorker          bool   // run the export worker inside the server process
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL disables PostgreSQL.
type DatabaseConfig struct {
	URL string // e.g. postgres://localhost:5432/quiz?sslmode=disable
}

// Enabled reports whether a database is configured.
func (c DatabaseConfig) Enabled() bool { return c.URL != "" }

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AdminConfig holds the shared admin password.
type AdminConfig struct {
	Password string
}

// TimerConfig locates the JSON timer config file used when PostgreSQL is disabled.
type TimerConfig struct {
	ConfigPath string
}

// SheetsConfig holds Google service account credentials.
type SheetsConfig struct {
	SpreadsheetID string
	ClientEmail   string
	PrivateKey    string
	SheetName     string
}

// AWSConfig holds AWS credentials and the results archive bucket. An empty bucket disables archiving.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ResultsBucket        string
	Endpoint             string
	UsePathStyle         bool
	PresignExpireMinutes int
}

// ExportConfig controls the export queue and session snapshots.
type ExportConfig struct {
	MaxAttempts int
	SessionTTL  time.Duration
}

// LogConfig controls zap output.
type LogConfig struct {
	Level string
	File  string
}

// RateLimitConfig bounds admin login attempts per client IP.
type RateLimitConfig struct {
	LoginRequests int
	LoginWindow   time.Duration
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			RunWorker:          getEnvBool("RUN_EXPORT_WORKER", true),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Admin: AdminConfig{
			Password: getEnv("ADMIN_PASSWORD", "admin1234@"),
		},
		Timer: TimerConfig{
			ConfigPath: getEnv("ADMIN_CONFIG_PATH", "admin-config.json"),
		},
		Sheets: SheetsConfig{
			SpreadsheetID: getEnv("GOOGLE_SHEET_ID", ""),
			ClientEmail:   getEnv("GOOGLE_CLIENT_EMAIL", ""),
			PrivateKey:    getEnv("GOOGLE_PRIVATE_KEY", ""),
			SheetName:     getEnv("GOOGLE_SHEET_NAME", "Sheet1"),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ResultsBucket:        getEnv("AWS_S3_RESULTS_BUCKET", ""),
			Endpoint:             getEnv("AWS_S3_ENDPOINT", ""),
			UsePathStyle:         getEnvBool("AWS_S3_USE_PATH_STYLE", false),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Export: ExportConfig{
			MaxAttempts: getEnvInt("EXPORT_MAX_ATTEMPTS", 1),
			SessionTTL:  time.Duration(getEnvInt("SESSION_TTL_HOURS", 2)) * time.Hour,
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
		RateLimit: RateLimitConfig{
			LoginRequests: getEnvInt("LOGIN_RATE_LIMIT", 5),
			LoginWindow:   time.Duration(getEnvInt("LOGIN_RATE_WINDOW_SEC", 60)) * time.Second,
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var problems []string
	if c.Admin.Password == "" {
		problems = append(problems, "ADMIN_PASSWORD must not be empty")
	}
	if c.JWT.Secret == "" {
		problems = append(problems, "JWT_SECRET must not be empty")
	}
	if c.Export.MaxAttempts < 1 {
		problems = append(problems, "EXPORT_MAX_ATTEMPTS must be at least 1")
	}
	if c.RateLimit.LoginRequests < 1 || c.RateLimit.LoginWindow <= 0 {
		problems = append(problems, "LOGIN_RATE_LIMIT and LOGIN_RATE_WINDOW_SEC must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
