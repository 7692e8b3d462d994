package concurrency

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

// ConfigSource indicates where the configuration came from
type ConfigSource string

const (
	ConfigSourceEnvVar     ConfigSource = "environment_variable"
	ConfigSourceAutoDetect ConfigSource = "auto_detect"
)

// Default retry and timeout settings applied when no environment override is
// present. MaxRetries counts additional attempts after the first one.
const (
	DefaultMaxRetries     = 3
	DefaultLockTimeout    = 30 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

// Config holds the concurrency and retry parameters shared by the pipeline.
type Config struct {
	MaxConcurrent  int
	MaxRetries     int
	LockTimeout    time.Duration
	RequestTimeout time.Duration
	Source         ConfigSource
	IsKubernetes   bool
	EffectiveCPUs  int
}

// LoadConfig loads configuration with priority: env vars > auto-detection.
// Recognized variables: DAEDALUS_MAX_CONCURRENT, DAEDALUS_CONCURRENCY_MULTIPLIER,
// DAEDALUS_MAX_RETRIES, DAEDALUS_LOCK_TIMEOUT, DAEDALUS_REQUEST_TIMEOUT.
func LoadConfig() *Config {
	config := &Config{}

	config.IsKubernetes = isKubernetes()
	config.EffectiveCPUs = runtime.GOMAXPROCS(0)

	if maxConcurrent := getEnvInt("DAEDALUS_MAX_CONCURRENT", 0); maxConcurrent > 0 {
		config.MaxConcurrent = maxConcurrent
		config.Source = ConfigSourceEnvVar
	} else if multiplier := getEnvInt("DAEDALUS_CONCURRENCY_MULTIPLIER", 0); multiplier > 0 {
		config.MaxConcurrent = config.EffectiveCPUs * multiplier
		config.Source = ConfigSourceEnvVar
	} else {
		config.MaxConcurrent = getDefaultMaxConcurrent(config.IsKubernetes, config.EffectiveCPUs)
		config.Source = ConfigSourceAutoDetect
	}
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}

	config.MaxRetries = getEnvInt("DAEDALUS_MAX_RETRIES", DefaultMaxRetries)
	if config.MaxRetries < 0 {
		config.MaxRetries = DefaultMaxRetries
	}

	config.LockTimeout = getEnvDuration("DAEDALUS_LOCK_TIMEOUT", DefaultLockTimeout)
	config.RequestTimeout = getEnvDuration("DAEDALUS_REQUEST_TIMEOUT", DefaultRequestTimeout)

	return config
}

// isKubernetes detects if the application is running in Kubernetes
func isKubernetes() bool {
	// Kubernetes sets this environment variable in all containers
	return os.Getenv("KUBERNETES_SERVICE_HOST") != ""
}

// getDefaultMaxConcurrent returns sensible defaults based on environment
func getDefaultMaxConcurrent(isK8s bool, cpus int) int {
	if isK8s {
		// Conservative for Kubernetes to prevent resource exhaustion
		return cpus * 2
	}
	return cpus * 4
}

// getEnvInt retrieves an integer from environment variable with default fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration (e.g. "5s") with default fallback
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

// String returns a formatted string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{MaxConcurrent: %d, MaxRetries: %d, LockTimeout: %s, RequestTimeout: %s, IsK8s: %t, CPUs: %d, Source: %s}",
		c.MaxConcurrent,
		c.MaxRetries,
		c.LockTimeout,
		c.RequestTimeout,
		c.IsKubernetes,
		c.EffectiveCPUs,
		c.Source,
	)
}

// GetOptimalConcurrency calculates optimal concurrency for a given multiplier
func GetOptimalConcurrency(multiplier int) int {
	cpus := runtime.GOMAXPROCS(0)
	if multiplier <= 0 {
		multiplier = 2
	}
	return cpus * multiplier
}
