package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"
)

const (
	// keySetTTL is how long a fetched key set is trusted
	keySetTTL = time.Hour
	// keySetMinRefresh throttles refetches triggered by unknown key IDs
	keySetMinRefresh = time.Minute
	// maxKeySetSize bounds the JWKS document
	maxKeySetSize = 1 << 20
)

// jsonWebKey is the subset of RFC 7517 fields needed for RSA keys
type jsonWebKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// keySet caches the RSA signing keys published at a JWKS URL
type keySet struct {
	url    string
	client *http.Client
	logger *slog.Logger

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func newKeySet(url string, logger *slog.Logger) *keySet {
	return &keySet{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// key returns the key for kid, fetching the set when it is stale or does
// not know kid
func (s *keySet) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.RLock()
	k, ok := s.keys[kid]
	fresh := time.Since(s.fetchedAt) < keySetTTL
	s.mu.RUnlock()
	if ok && fresh {
		return k, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// another caller may have refreshed while we waited
	age := time.Since(s.fetchedAt)
	if k, ok := s.keys[kid]; ok && age < keySetTTL {
		return k, nil
	}
	if s.keys == nil || age >= keySetMinRefresh {
		if err := s.fetch(ctx); err != nil {
			return nil, err
		}
	}

	k, ok = s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown signing key %q", kid)
	}
	return k, nil
}

// fetch replaces the cached keys; callers hold s.mu
func (s *keySet) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("creating JWKS request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching JWKS: unexpected status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxKeySetSize)).Decode(&doc); err != nil {
		return fmt.Errorf("parsing JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, jwk := range doc.Keys {
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}
		pub, err := jwk.rsaPublicKey()
		if err != nil {
			s.logger.Warn("skipping JWK", "kid", jwk.Kid, "error", err)
			continue
		}
		keys[jwk.Kid] = pub
	}

	s.keys = keys
	s.fetchedAt = time.Now()
	s.logger.Info("refreshed JWKS", "url", s.url, "keys", len(keys))
	return nil
}

func (k jsonWebKey) rsaPublicKey() (*rsa.PublicKey, error) {
	if k.Kty != "RSA" {
		return nil, fmt.Errorf("unsupported key type %q", k.Kty)
	}
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() < 3 || exp.Int64() > 1<<31-1 {
		return nil, fmt.Errorf("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}
