package common

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process-wide configuration, read once at startup.
type Config struct {
	Env    string
	Port   string
	Domain string

	DBDriver          string
	DBDSN             string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxIdleTime time.Duration
	DBAcquireTimeout  time.Duration

	SessionSecret string

	AdminUsername string
	AdminPassword string
	AdminPath     string

	UploadDir      string
	UploadMaxBytes int64
	UploadBackend  string
	Minio          MinioConfig

	RedisURL     string
	FrontendDir  string
	CORSOrigins  []string
	PageCacheTTL time.Duration
	PageCacheDir string

	SMTP        SMTPConfig
	NotifyEmail string

	LogLevel string
	LogPath  string
}

type MinioConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
	PublicURL       string
}

type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

// LoadConfig reads .env (when present) and then the environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:    getEnv("APP_ENV", "development"),
		Port:   getEnv("PORT", "8080"),
		Domain: strings.TrimSuffix(getEnv("DOMAIN", "http://localhost:8080"), "/"),

		DBDriver:          strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:             getEnv("DB_DSN", getEnv("sqlite_db", "cabins.db")),
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second),
		DBAcquireTimeout:  getEnvDuration("DB_ACQUIRE_TIMEOUT", 5*time.Second),

		SessionSecret: os.Getenv("SESSION_SECRET"),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),
		AdminPath:     getEnv("ADMIN_PATH", "admin"),

		UploadDir:      getEnv("UPLOAD_DIR", "./uploads"),
		UploadMaxBytes: int64(getEnvInt("UPLOAD_MAX_BYTES", 5*1024*1024)),
		UploadBackend:  strings.ToLower(getEnv("UPLOAD_BACKEND", "local")),
		Minio: MinioConfig{
			Endpoint:        getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getEnv("MINIO_USER", "minioadmin"),
			SecretAccessKey: getEnv("MINIO_PASSWORD", "minioadmin"),
			UseSSL:          getEnvBool("MINIO_USE_SSL", false),
			BucketName:      getEnv("MINIO_BUCKET", "cabin-images"),
			PublicURL:       getEnv("MINIO_PUBLIC_URL", ""),
		},

		RedisURL:     os.Getenv("REDIS_URL"),
		FrontendDir:  getEnv("FRONTEND_DIR", "./public"),
		CORSOrigins:  splitList(os.Getenv("CORS_ORIGINS")),
		PageCacheTTL: getEnvDuration("PAGE_CACHE_TTL", 0),
		PageCacheDir: getEnv("PAGE_CACHE_DIR", "cache"),

		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnv("SMTP_PORT", "587"),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		NotifyEmail: os.Getenv("NOTIFY_EMAIL"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogPath:  os.Getenv("LOG_PATH"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "mysql", "postgres":
	default:
		return errors.New("DB_DRIVER must be one of sqlite, mysql, postgres")
	}
	if c.DBDSN == "" {
		return errors.New("DB_DSN is required")
	}
	if c.SessionSecret == "" {
		if c.IsProduction() {
			return errors.New("SESSION_SECRET is required in production")
		}
		c.SessionSecret = "dev-session-secret-change-me"
	}
	if c.DBMaxOpenConns <= 0 {
		return errors.New("DB_MAX_OPEN_CONNS must be positive")
	}
	if c.UploadMaxBytes <= 0 {
		return errors.New("UPLOAD_MAX_BYTES must be positive")
	}
	switch c.UploadBackend {
	case "local", "minio":
	default:
		return errors.New("UPLOAD_BACKEND must be local or minio")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
