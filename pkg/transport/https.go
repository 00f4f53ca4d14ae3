// Package transport implements the outbound HTTPS client used to fetch
// attachments from a remote document store
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TLS version constants
const (
	TLS12 = tls.VersionTLS12
	TLS13 = tls.VersionTLS13
)

// DefaultMaxResponseSize caps the size of a fetched attachment
const DefaultMaxResponseSize = 64 << 20

// Recommended TLS 1.2 cipher suites
var RecommendedTLS12CipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
}

// Fetcher retrieves the raw bytes behind a URL
type Fetcher interface {
	Fetch(ctx context.Context, url string, header http.Header) ([]byte, error)
}

// HTTPSConfig contains HTTPS client configuration
type HTTPSConfig struct {
	MinTLSVersion   uint16
	MaxTLSVersion   uint16
	CipherSuites    []uint16
	Certificates    []tls.Certificate
	RootCAs         *x509.CertPool
	Timeout         time.Duration
	IdleConnTimeout time.Duration
	// MaxResponseSize limits the response body; 0 means DefaultMaxResponseSize
	MaxResponseSize int64
}

// DefaultHTTPSConfig returns a default HTTPS configuration
func DefaultHTTPSConfig() *HTTPSConfig {
	return &HTTPSConfig{
		MinTLSVersion:   TLS12,
		MaxTLSVersion:   TLS13,
		CipherSuites:    RecommendedTLS12CipherSuites,
		Timeout:         30 * time.Second,
		IdleConnTimeout: 90 * time.Second,
		MaxResponseSize: DefaultMaxResponseSize,
	}
}

// HTTPSClient fetches attachments over HTTPS
type HTTPSClient struct {
	client *http.Client
	config *HTTPSConfig
}

// NewHTTPSClient creates a new HTTPS client
func NewHTTPSClient(config *HTTPSConfig) *HTTPSClient {
	if config == nil {
		config = DefaultHTTPSConfig()
	}

	tlsConfig := &tls.Config{
		MinVersion:   config.MinTLSVersion,
		MaxVersion:   config.MaxTLSVersion,
		CipherSuites: config.CipherSuites,
		Certificates: config.Certificates,
		RootCAs:      config.RootCAs,
	}

	transport := &http.Transport{
		TLSClientConfig:     tlsConfig,
		IdleConnTimeout:     config.IdleConnTimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
	}

	return &HTTPSClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		config: config,
	}
}

// Fetch issues a single GET and returns the response body. Any status
// outside 2xx is an error; there is no retry.
func (c *HTTPSClient) Fetch(ctx context.Context, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	req.Header.Set("User-Agent", "go-xop/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	limit := c.config.MaxResponseSize
	if limit <= 0 {
		limit = DefaultMaxResponseSize
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("response exceeds %d bytes", limit)
	}

	return body, nil
}
