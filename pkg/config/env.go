package config

import (
	"os"
	"strconv"
	"time"
)

// GetEnv returns the value of an environment variable or a default value if not set
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value if not set
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value if not set
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnvClamped reads an integer environment variable and clamps it to [min, max].
// Out-of-range values degrade to the nearest bound instead of crash-looping the service.
func GetIntEnvClamped(key string, defaultValue, min, max int) int {
	value := GetIntEnv(key, defaultValue)
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// GetIntEnvAlias reads the first of several aliased environment variables
// that is set, clamped to [min, max]. The canonical name goes first.
func GetIntEnvAlias(defaultValue, min, max int, keys ...string) int {
	for _, key := range keys {
		if os.Getenv(key) != "" {
			return GetIntEnvClamped(key, defaultValue, min, max)
		}
	}
	if defaultValue < min {
		return min
	}
	if defaultValue > max {
		return max
	}
	return defaultValue
}

// GetDurationEnv returns a duration from an environment variable. Plain integers
// are interpreted as milliseconds, anything else goes through time.ParseDuration.
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	return defaultValue
}

// MustGetEnv returns the value of an environment variable or panics if not set
func MustGetEnv(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	panic("Required environment variable " + key + " is not set")
}
