package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	SinkURL        string
	SinkSecret     string
	Port           string
	HTTPTimeout    time.Duration
	LogLevel       slog.Level
	MaxUploadBytes int64
	MaxBatches     int
}

// Load reads a .env file when present and then the environment.
func Load(files ...string) Config {
	_ = godotenv.Load(files...)
	return FromEnv()
}

func FromEnv() Config {
	to := 15 * time.Second
	if v := os.Getenv("HTTP_TIMEOUT_SECONDS"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			to = d
		}
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(envOr("LOG_LEVEL", "info"))); err != nil {
		lvl = slog.LevelInfo
	}
	return Config{
		SinkURL:        os.Getenv("SINK_URL"),
		SinkSecret:     os.Getenv("SINK_SECRET"),
		Port:           envOr("PORT", "8080"),
		HTTPTimeout:    to,
		LogLevel:       lvl,
		MaxUploadBytes: int64(intOr("MAX_UPLOAD_MB", 32)) << 20,
		MaxBatches:     intOr("MAX_BATCHES", 20),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func intOr(k string, def int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
