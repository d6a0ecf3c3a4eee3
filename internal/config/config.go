// Package config builds the immutable configuration of the bridge from
// environment variables, an optional .env file and command-line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configuration keys.
const (
	KeyUpstreamURL     = "upstream.base_url"
	KeyUpstreamTimeout = "upstream.timeout"
	KeyHTTPAddr        = "http.addr"
	KeyHTTPPort        = "http.port"
	KeyLogLevel        = "log.level"
	KeyLogFormat       = "log.format"
	KeyLogDir          = "log.dir"
	KeyServerName      = "server.name"
	KeyProtocolVersion = "server.protocol_version"
)

// Defaults.
const (
	DefaultUpstreamURL     = "https://vectorapi.up.railway.app/v1"
	DefaultUpstreamTimeout = 15 * time.Second
	DefaultPort            = "8080"
	DefaultServerName      = "vector-ai-sports"
	DefaultProtocolVersion = "2024-11-05"

	MinUpstreamTimeout = 10 * time.Second
	MaxUpstreamTimeout = 30 * time.Second
)

var envBindings = map[string]string{
	KeyUpstreamURL:     "VECTOR_API_URL",
	KeyUpstreamTimeout: "VECTOR_API_TIMEOUT",
	KeyHTTPAddr:        "HTTP_ADDR",
	KeyHTTPPort:        "PORT",
	KeyLogLevel:        "LOG_LEVEL",
	KeyLogFormat:       "LOG_FORMAT",
	KeyLogDir:          "LOG_DIR",
	KeyServerName:      "MCP_SERVER_NAME",
	KeyProtocolVersion: "MCP_PROTOCOL_VERSION",
}

// Config is built once at startup and passed by value.
type Config struct {
	UpstreamURL     string
	UpstreamTimeout time.Duration
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	LogDir          string
	ServerName      string
	ProtocolVersion string
}

// NewViper returns a viper instance with defaults and env bindings set.
// Callers may bind flags on it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyUpstreamURL, DefaultUpstreamURL)
	v.SetDefault(KeyUpstreamTimeout, DefaultUpstreamTimeout.String())
	v.SetDefault(KeyHTTPPort, DefaultPort)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyServerName, DefaultServerName)
	v.SetDefault(KeyProtocolVersion, DefaultProtocolVersion)
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return v
}

// Load reads and validates the configuration.
func Load(v *viper.Viper) (Config, error) {
	timeout, err := parseTimeout(v.GetString(KeyUpstreamTimeout))
	if err != nil {
		return Config{}, err
	}

	addr := strings.TrimSpace(v.GetString(KeyHTTPAddr))
	if addr == "" {
		addr = ":" + strings.TrimPrefix(strings.TrimSpace(v.GetString(KeyHTTPPort)), ":")
	}

	cfg := Config{
		UpstreamURL:     strings.TrimSuffix(strings.TrimSpace(v.GetString(KeyUpstreamURL)), "/"),
		UpstreamTimeout: timeout,
		HTTPAddr:        addr,
		LogLevel:        v.GetString(KeyLogLevel),
		LogFormat:       v.GetString(KeyLogFormat),
		LogDir:          v.GetString(KeyLogDir),
		ServerName:      v.GetString(KeyServerName),
		ProtocolVersion: v.GetString(KeyProtocolVersion),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for startup-fatal mistakes.
func (c Config) Validate() error {
	u, err := url.Parse(c.UpstreamURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("upstream base url %q must be an absolute http(s) url", c.UpstreamURL)
	}
	if c.UpstreamTimeout < MinUpstreamTimeout || c.UpstreamTimeout > MaxUpstreamTimeout {
		return fmt.Errorf("upstream timeout %s outside [%s, %s]", c.UpstreamTimeout, MinUpstreamTimeout, MaxUpstreamTimeout)
	}
	if c.HTTPAddr == ":" {
		return errors.New("http listen address is empty")
	}
	if strings.TrimSpace(c.ServerName) == "" {
		return errors.New("server name is empty")
	}
	if strings.TrimSpace(c.ProtocolVersion) == "" {
		return errors.New("protocol version is empty")
	}
	return nil
}

// parseTimeout accepts Go durations ("15s") and bare seconds ("15").
func parseTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("upstream timeout %q: %w", raw, err)
	}
	return d, nil
}
