package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIURL   string `yaml:"api_url"`
	LogLevel string `yaml:"log_level"`

	OutputDir   string   `yaml:"output_dir"`
	ExcludeDirs []string `yaml:"exclude_dirs"`

	MetricsPort string `yaml:"metrics_port"`

	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	BreakerEnabled            bool `yaml:"breaker_enabled"`
	BreakerMinRequests        int  `yaml:"breaker_min_requests"`
	BreakerOpenTimeoutSeconds int  `yaml:"breaker_open_timeout_seconds"`
}

func defaults() Config {
	return Config{
		APIURL:                    "http://localhost:8000",
		LogLevel:                  "info",
		OutputDir:                 ".",
		ExcludeDirs:               []string{"node_modules", ".git", "dist", "build", "__pycache__"},
		NATSSubject:               "uploader.events",
		BreakerEnabled:            true,
		BreakerMinRequests:        3,
		BreakerOpenTimeoutSeconds: 30,
	}
}

// Load reads the configuration from the environment. When CONFIG_FILE is
// set the YAML profile is read first and environment values override it.
func Load() (Config, error) {
	if path := mustEnv("CONFIG_FILE", ""); path != "" {
		return LoadFile(path)
	}
	return fromEnv(defaults()), nil
}

func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	cfg := defaults()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fromEnv(cfg), nil
}

func fromEnv(base Config) Config {
	return Config{
		APIURL:   strings.TrimRight(mustEnv("EXPLAINER_API_URL", base.APIURL), "/"),
		LogLevel: mustEnv("LOG_LEVEL", base.LogLevel),

		OutputDir:   mustEnv("OUTPUT_DIR", base.OutputDir),
		ExcludeDirs: mustEnvList("EXCLUDE_DIRS", base.ExcludeDirs),

		MetricsPort: mustEnv("METRICS_PORT", base.MetricsPort),

		NATSURL:     mustEnv("NATS_URL", base.NATSURL),
		NATSSubject: mustEnv("NATS_SUBJECT", base.NATSSubject),

		BreakerEnabled:            mustEnvBool("BREAKER_ENABLED", base.BreakerEnabled),
		BreakerMinRequests:        mustEnvInt("BREAKER_MIN_REQUESTS", base.BreakerMinRequests),
		BreakerOpenTimeoutSeconds: mustEnvInt("BREAKER_OPEN_TIMEOUT_SECONDS", base.BreakerOpenTimeoutSeconds),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	out := make([]string, 0)
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
