package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/gymaccess.db"

	// Admin endpoints
	JWTSecret string

	// Vendor integration
	TokenSafetyMargin time.Duration
	ExchangeTimeout   time.Duration
	PushTimeout       time.Duration
	DoorPolicyFile    string

	// Event processing
	ProcessInterval    time.Duration // 0 = sweeper disabled
	MaxProcessAttempts int

	LogLevel  string
	LogFormat string
}

// FromEnv loads an optional .env file and then reads GYMACCESS_* variables.
// Values that fail to parse fall back to their defaults.
func FromEnv() Config {
	_ = godotenv.Load()

	env := strings.ToLower(getenvDefault("GYMACCESS_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	return Config{
		HTTPAddr: getenvDefault("GYMACCESS_HTTP_ADDR", ":8080"),
		GRPCAddr: getenvDefault("GYMACCESS_GRPC_ADDR", ":9090"),
		Env:      env,
		DBPath:   getenvDefault("GYMACCESS_DB_PATH", "./data/gymaccess.db"),

		JWTSecret: os.Getenv("GYMACCESS_JWT_SECRET"),

		TokenSafetyMargin: getenvDuration("GYMACCESS_TOKEN_SAFETY_MARGIN", 5*time.Minute),
		ExchangeTimeout:   getenvDuration("GYMACCESS_EXCHANGE_TIMEOUT", 10*time.Second),
		PushTimeout:       getenvDuration("GYMACCESS_PUSH_TIMEOUT", 10*time.Second),
		DoorPolicyFile:    strings.TrimSpace(os.Getenv("GYMACCESS_DOOR_POLICY_FILE")),

		ProcessInterval:    getenvDuration("GYMACCESS_PROCESS_INTERVAL", time.Minute),
		MaxProcessAttempts: getenvInt("GYMACCESS_MAX_PROCESS_ATTEMPTS", 5),

		LogLevel:  getenvDefault("GYMACCESS_LOG_LEVEL", "info"),
		LogFormat: getenvDefault("GYMACCESS_LOG_FORMAT", "json"),
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// getenvDuration accepts Go duration strings ("90s", "5m") or a bare
// number of seconds.
func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	return def
}
