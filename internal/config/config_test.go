package config

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-xop/pkg/xop"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/xop", cfg.Server.BasePath)
	assert.Equal(t, int64(64<<20), cfg.Server.MaxBodySize)
	assert.Equal(t, "message", cfg.Handler.Source)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "1.2", cfg.Fetch.MinTLSVersion)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "/metrics", cfg.Metrics.Metrics.Path)
	assert.False(t, cfg.Metrics.Metrics.Enabled)

	assert.Equal(t, Default(), cfg)
}

func TestParse_Full(t *testing.T) {
	t.Setenv("XOP_PART2", "image/bmp")

	cfg, err := Parse([]byte(`
server:
  port: 9090
  basePath: /callouts/xop
handler:
  action: TRANSFORM_TO_EMBEDDED
  part2ContentTypes: ${XOP_PART2}, application/pdf
  debug: true
fetch:
  timeout: 5s
  minTLSVersion: "1.3"
auth:
  oauth2:
    issuer: https://auth.example.com
    jwksUrl: https://auth.example.com/jwks
    scope: xop:write
logging:
  level: debug
  format: json
observability:
  metrics:
    enabled: true
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/callouts/xop", cfg.Server.BasePath)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.True(t, cfg.Metrics.Metrics.Enabled)
	assert.Equal(t, "https://auth.example.com", cfg.Auth.OAuth2.Issuer)
	assert.Equal(t, "xop:write", cfg.Auth.OAuth2.Scope)

	v, err := cfg.Fetch.TLSVersion()
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS13), v)

	props := cfg.Handler.Properties()
	assert.Equal(t, map[string]string{
		"source":       "message",
		"action":       "TRANSFORM_TO_EMBEDDED",
		"part2-ctypes": "image/bmp, application/pdf",
		"debug":        "true",
	}, props)
	assert.Equal(t, "TRANSFORM_TO_EMBEDDED", props[xop.PropertyAction])
	assert.Equal(t, "image/bmp, application/pdf", props[xop.PropertyPart2CTypes])
	assert.NotContains(t, props, xop.PropertyPart1CTypes)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad yaml", "server: [", "parsing config file"},
		{"port", "server:\n  port: 70000", "server.port"},
		{"base path", "server:\n  basePath: xop", "server.basePath"},
		{"tls files", "server:\n  tls:\n    enabled: true", "server.tls.certFile"},
		{"jwks url", "auth:\n  oauth2:\n    issuer: https://auth.example.com", "auth.oauth2.jwksUrl"},
		{"tls version", "fetch:\n  minTLSVersion: \"1.0\"", "fetch.minTLSVersion"},
		{"log level", "logging:\n  level: verbose", "logging.level"},
		{"log format", "logging:\n  format: xml", "logging.format"},
		{"metrics path", "observability:\n  metrics:\n    path: metrics", "observability.metrics.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8443\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8443, cfg.Server.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config file")
}
