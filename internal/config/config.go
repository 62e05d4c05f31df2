package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port int

	DBURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// receipt object storage
	S3Endpoint      string
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicBaseURL string

	// external email function; empty means log-only notifier
	NotifyURL string

	// registration workflow knobs
	HackathonCapacity int
	DebounceMS        int

	// admin surface
	AdminEmail        string
	AdminPasswordHash string
	JWTSecret         string
	JWTAccessTTL      time.Duration

	OTLPEndpoint   string
	AllowedOrigins []string
}

func Load() Config {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	return Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 8080),

		DBURL: buildDBURL(),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		S3Endpoint:      getEnv("S3_ENDPOINT", "http://127.0.0.1:9000"),
		S3Region:        getEnv("S3_REGION", "us-east-1"),
		S3Bucket:        getEnv("S3_BUCKET", "regdesk-receipts"),
		S3AccessKey:     getEnv("S3_ACCESS_KEY", "regdesk"),
		S3SecretKey:     getEnv("S3_SECRET_KEY", "regdesk"),
		S3PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),

		NotifyURL: getEnv("NOTIFY_URL", ""),

		HackathonCapacity: getEnvInt("HACKATHON_CAPACITY", 25),
		DebounceMS:        getEnvInt("DUPLICATE_CHECK_DEBOUNCE_MS", 500),

		AdminEmail:        getEnv("ADMIN_EMAIL", "admin@example.com"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTAccessTTL:      time.Duration(getEnvInt("JWT_ACCESS_TTL_MINUTES", 30)) * time.Minute,

		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", ""),
		AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
	}
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "regdesk")
	pass := getEnv("DB_PASSWORD", "regdesk")
	name := getEnv("DB_NAME", "regdesk")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func (c Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
