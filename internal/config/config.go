// Package config loads server settings from defaults, an optional YAML file
// and STATICHTTPD_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Brownie44l1/statichttpd/internal/static"
)

const (
	DefaultPort           = 8080
	DefaultDocumentRoot   = "./www"
	DefaultReadTimeout    = 30 * time.Second
	DefaultMaxRequestLine = 4096

	maxRequestLineLimit = 64 << 10
)

var (
	ErrInvalidPort   = errors.New("invalid port")
	ErrInvalidConfig = errors.New("invalid config")
)

// Config holds every setting the server needs. It is not modified once the
// server starts.
type Config struct {
	Port         uint16 `yaml:"port"`
	DocumentRoot string `yaml:"document_root"`

	// Deadlines on the client connection, zero disables them
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	MaxRequestLine int    `yaml:"max_request_line"`
	ServerName     string `yaml:"server_name"`

	// "segment" or "prefix", see static.Containment
	Containment  string `yaml:"containment"`
	SniffUnknown bool   `yaml:"sniff_unknown"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Port:           DefaultPort,
		DocumentRoot:   DefaultDocumentRoot,
		ReadTimeout:    DefaultReadTimeout,
		MaxRequestLine: DefaultMaxRequestLine,
		ServerName:     "statichttpd/1.0",
		Containment:    "segment",
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), the environment and then overrides, in that order. The
// result is validated once, after every layer has been applied.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	for _, override := range overrides {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("STATICHTTPD_PORT"); v != "" {
		port, err := ParsePort(v)
		if err != nil {
			return fmt.Errorf("STATICHTTPD_PORT: %w", err)
		}
		c.Port = port
	}

	c.DocumentRoot = getEnvOrDefault("STATICHTTPD_ROOT", c.DocumentRoot)
	c.ServerName = getEnvOrDefault("STATICHTTPD_SERVER_NAME", c.ServerName)
	c.Containment = getEnvOrDefault("STATICHTTPD_CONTAINMENT", c.Containment)
	c.LogLevel = getEnvOrDefault("STATICHTTPD_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvOrDefault("STATICHTTPD_LOG_FORMAT", c.LogFormat)

	var err error
	if c.ReadTimeout, err = getEnvAsDurationOrDefault("STATICHTTPD_READ_TIMEOUT", c.ReadTimeout); err != nil {
		return err
	}
	if c.WriteTimeout, err = getEnvAsDurationOrDefault("STATICHTTPD_WRITE_TIMEOUT", c.WriteTimeout); err != nil {
		return err
	}
	if v := os.Getenv("STATICHTTPD_SNIFF_UNKNOWN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("STATICHTTPD_SNIFF_UNKNOWN: %w", err)
		}
		c.SniffUnknown = b
	}
	return nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	if c.DocumentRoot == "" {
		return fmt.Errorf("%w: document root must not be empty", ErrInvalidConfig)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}
	if c.MaxRequestLine <= 0 || c.MaxRequestLine > maxRequestLineLimit {
		return fmt.Errorf("%w: max_request_line must be in 1..%d, got %d",
			ErrInvalidConfig, maxRequestLineLimit, c.MaxRequestLine)
	}
	if strings.ContainsAny(c.ServerName, "\r\n") {
		return fmt.Errorf("%w: server_name must be a single line", ErrInvalidConfig)
	}
	if _, err := static.ParseContainment(c.Containment); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// Address returns the listen address for the configured port on all interfaces.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// ParsePort parses a TCP port number in 1..65535.
func ParsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, s)
	}
	return uint16(n), nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
