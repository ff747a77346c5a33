package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	APIURL      string
	PushURL     string
	Token       string
	PageSize    int
	RateLimit   float64
	HTTPTimeout time.Duration
	MetricsAddr string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present; real env vars win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:         getEnv("PULSE_ENV", "development"),
		APIURL:      getEnv("PULSE_API_URL", "http://localhost:8080"),
		PushURL:     getEnv("PULSE_PUSH_URL", "ws://localhost:8080/ws"),
		Token:       getEnv("PULSE_TOKEN", ""),
		PageSize:    getEnvInt("PULSE_PAGE_SIZE", 50),
		RateLimit:   getEnvFloat("PULSE_RATE_LIMIT", 10),
		HTTPTimeout: getEnvDuration("PULSE_HTTP_TIMEOUT", 20*time.Second),
		MetricsAddr: getEnv("PULSE_METRICS_ADDR", ""),
	}
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
