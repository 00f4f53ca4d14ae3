// Package config handles configuration loading for the XOP service.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax), so that secrets such as the
// document store API key can be injected at runtime.
//
// # Configuration Sections
//
//   - server: HTTP server settings (port, TLS, base path)
//   - handler: default handler properties (action, allowlists, debug)
//   - fetch: outbound client used by GET_BASE64STR
//   - auth: optional OAuth2 bearer token validation
//   - logging: slog level and format
//   - observability: Prometheus metrics endpoint
//
// # Example Configuration
//
//	server:
//	  port: 8080
//	  basePath: /xop
//
//	handler:
//	  action: EDIT_1
//	  part2ContentTypes: application/zip, application/pdf
//	  debug: false
//
//	fetch:
//	  timeout: 30s
//	  minTLSVersion: "1.2"
//
//	auth:
//	  oauth2:
//	    issuer: https://auth.example.com
//	    audience: xop
//	    jwksUrl: https://auth.example.com/.well-known/jwks.json
//
//	observability:
//	  metrics:
//	    enabled: true
//	    path: /metrics
//
// See [Load] for loading configuration from a file.
package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sirosfoundation/go-xop/pkg/xop"
)

// Config is the root configuration structure
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Handler HandlerConfig `yaml:"handler"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port     int    `yaml:"port"`
	BasePath string `yaml:"basePath"`
	// MaxBodySize limits request bodies, in bytes
	MaxBodySize int64 `yaml:"maxBodySize"`
	TLS         struct {
		Enabled  bool   `yaml:"enabled"`
		CertFile string `yaml:"certFile"`
		KeyFile  string `yaml:"keyFile"`
	} `yaml:"tls"`
}

// HandlerConfig holds the default properties of the XOP handler. Values
// may contain {name} references resolved per request.
type HandlerConfig struct {
	Source            string `yaml:"source"`
	Action            string `yaml:"action"`
	Part1ContentTypes string `yaml:"part1ContentTypes"`
	Part2ContentTypes string `yaml:"part2ContentTypes"`
	Debug             bool   `yaml:"debug"`
}

// FetchConfig holds the attachment fetch client settings
type FetchConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	IdleConnTimeout time.Duration `yaml:"idleConnTimeout"`
	MinTLSVersion   string        `yaml:"minTLSVersion"`
	MaxResponseSize int64         `yaml:"maxResponseSize"`
}

// AuthConfig holds authentication settings for the XOP endpoint
type AuthConfig struct {
	OAuth2 OAuth2Config `yaml:"oauth2"`
}

// OAuth2Config configures bearer JWT validation. Authentication is
// disabled when Issuer is empty.
type OAuth2Config struct {
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
	JWKSUrl  string `yaml:"jwksUrl"`
	// Scope, when set, must appear in the token's scope claim
	Scope string `yaml:"scope"`
}

// LoggingConfig holds slog settings
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is text or json
	Format string `yaml:"format"`
}

// MetricsConfig holds observability settings
type MetricsConfig struct {
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes configuration from YAML, expanding environment variables
// and applying defaults
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/xop"
	}
	if c.Server.MaxBodySize == 0 {
		c.Server.MaxBodySize = 64 << 20
	}
	if c.Handler.Source == "" {
		c.Handler.Source = "message"
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.IdleConnTimeout == 0 {
		c.Fetch.IdleConnTimeout = 90 * time.Second
	}
	if c.Fetch.MinTLSVersion == "" {
		c.Fetch.MinTLSVersion = "1.2"
	}
	if c.Fetch.MaxResponseSize == 0 {
		c.Fetch.MaxResponseSize = 64 << 20
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Metrics.Path == "" {
		c.Metrics.Metrics.Path = "/metrics"
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("server.basePath must start with '/', got '%s'", c.Server.BasePath)
	}
	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		return fmt.Errorf("server.tls.certFile and server.tls.keyFile are required when TLS is enabled")
	}

	if _, err := c.Fetch.TLSVersion(); err != nil {
		return err
	}

	if c.Auth.OAuth2.Issuer != "" && c.Auth.OAuth2.JWKSUrl == "" {
		return fmt.Errorf("auth.oauth2.jwksUrl is required when auth.oauth2.issuer is set")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got '%s'", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be 'text' or 'json', got '%s'", c.Logging.Format)
	}

	if !strings.HasPrefix(c.Metrics.Metrics.Path, "/") {
		return fmt.Errorf("observability.metrics.path must start with '/', got '%s'", c.Metrics.Metrics.Path)
	}

	return nil
}

// TLSVersion maps MinTLSVersion to a crypto/tls constant
func (f FetchConfig) TLSVersion() (uint16, error) {
	switch f.MinTLSVersion {
	case "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("fetch.minTLSVersion must be '1.2' or '1.3', got '%s'", f.MinTLSVersion)
	}
}

// Properties returns the handler properties in the form the XOP handler
// expects
func (h HandlerConfig) Properties() map[string]string {
	props := map[string]string{
		xop.PropertySource: h.Source,
		xop.PropertyDebug:  strconv.FormatBool(h.Debug),
	}
	if h.Action != "" {
		props[xop.PropertyAction] = h.Action
	}
	if h.Part1ContentTypes != "" {
		props[xop.PropertyPart1CTypes] = h.Part1ContentTypes
	}
	if h.Part2ContentTypes != "" {
		props[xop.PropertyPart2CTypes] = h.Part2ContentTypes
	}
	return props
}
