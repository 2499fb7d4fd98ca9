package config

import (
	"os"
	"strconv"
	"time"
)

// Env holds the process-level settings that come from the environment rather
// than the gateway config file.
type Env struct {
	ConfigFile     string
	LogLevel       string
	RequestTimeout time.Duration
	MaxTurns       int
}

func LoadEnv() *Env {
	return &Env{
		ConfigFile:     getEnv("GATEWAY_CONFIG", "config.yaml"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RequestTimeout: time.Duration(getEnvInt("GATEWAY_REQUEST_TIMEOUT_SECONDS", 300)) * time.Second,
		MaxTurns:       getEnvInt("GATEWAY_MAX_TURNS", 25),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
