// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type StorageBackend string

const (
	StorageLocal      StorageBackend = "local"
	StorageS3         StorageBackend = "s3"
	StorageCloudinary StorageBackend = "cloudinary"
)

// Config holds every setting the server and the command line tools read.
type Config struct {
	Env      string
	Port     string
	GinMode  string
	LogLevel string
	LogDir   string

	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	JWTSecret string
	TokenTTL  time.Duration

	// AdminKeys are the registration keys currently accepted for admin
	// sign-up. More than one may be active while a key is being rotated.
	AdminKeys []string

	CORSOrigins []string

	RedisAddress    string
	RedisPassword   string
	IssueDailyLimit int

	Storage          StorageBackend
	UploadDir        string
	UploadURLPrefix  string
	MaxUploadBytes   int64
	S3Bucket         string
	AWSRegion        string
	AWSEndpoint      string
	CloudinaryURL    string
	CloudinaryFolder string
}

// Load reads a .env file when present and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	ttlHours, err := strconv.Atoi(get("TOKEN_TTL_HOURS", "24"))
	if err != nil || ttlHours <= 0 {
		return nil, fmt.Errorf("invalid TOKEN_TTL_HOURS: %q", os.Getenv("TOKEN_TTL_HOURS"))
	}
	dailyLimit, err := strconv.Atoi(get("ISSUE_DAILY_LIMIT", "10"))
	if err != nil || dailyLimit <= 0 {
		return nil, fmt.Errorf("invalid ISSUE_DAILY_LIMIT: %q", os.Getenv("ISSUE_DAILY_LIMIT"))
	}
	maxMB, err := strconv.Atoi(get("MAX_UPLOAD_MB", "10"))
	if err != nil || maxMB <= 0 {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB: %q", os.Getenv("MAX_UPLOAD_MB"))
	}

	cfg := &Config{
		Env:      get("ENV", "development"),
		Port:     get("PORT", "8080"),
		GinMode:  os.Getenv("GIN_MODE"),
		LogLevel: get("LOG_LEVEL", "INFO"),
		LogDir:   get("LOG_DIR", "logs"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      get("DB_HOST", "localhost"),
		DBPort:      get("DB_PORT", "5432"),
		DBUser:      get("DB_USER", "postgres"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBName:      get("DB_NAME", "civicwatch"),
		DBSSLMode:   get("DB_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		TokenTTL:  time.Duration(ttlHours) * time.Hour,

		AdminKeys:   splitList(os.Getenv("ADMIN_REGISTRATION_KEYS")),
		CORSOrigins: splitList(get("CORS_ORIGINS", "http://localhost:3000")),

		RedisAddress:    os.Getenv("REDIS_ADDRESS"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		IssueDailyLimit: dailyLimit,

		Storage:          StorageBackend(strings.ToLower(get("STORAGE_BACKEND", string(StorageLocal)))),
		UploadDir:        get("UPLOAD_DIR", "uploads"),
		UploadURLPrefix:  get("UPLOAD_URL_PREFIX", "/uploads"),
		MaxUploadBytes:   int64(maxMB) << 20,
		S3Bucket:         os.Getenv("S3_BUCKET"),
		AWSRegion:        get("AWS_REGION", "us-east-1"),
		AWSEndpoint:      os.Getenv("AWS_ENDPOINT_URL"),
		CloudinaryURL:    os.Getenv("CLOUDINARY_URL"),
		CloudinaryFolder: get("CLOUDINARY_FOLDER", "civicwatch/issues"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	switch c.Storage {
	case StorageLocal:
	case StorageS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	case StorageCloudinary:
		if c.CloudinaryURL == "" {
			return fmt.Errorf("CLOUDINARY_URL is required when STORAGE_BACKEND=cloudinary")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage)
	}
	return nil
}

// DSN returns DATABASE_URL when set, otherwise a key/value DSN built from
// the DB_* variables.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "local"
}

func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
