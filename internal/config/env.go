package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variables read by cmd/music. Flags take precedence.
const (
	EnvStorePath     = "MSTID_STORE_PATH"
	EnvWorkers       = "MSTID_WORKERS"
	EnvInitParamsDir = "MSTID_INIT_PARAMS_DIR"
	EnvQuiet         = "MSTID_QUIET"
)

// GetEnvStr returns a string environment variable value or a default if not set.
func GetEnvStr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// GetEnvInt returns an int environment variable value or a default if not set
// or not parseable.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}

	return defaultValue
}

// GetEnvBool returns a bool environment variable value or a default if not set.
// Accepts 1/0, true/false, yes/no, on/off.
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}

	return defaultValue
}
