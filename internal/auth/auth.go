// Package auth validates OAuth2 bearer tokens for the XOP endpoint.
//
// Tokens are JWTs signed with RS256, RS384 or RS512 by a key published in
// the issuer's JWKS. Validation is delegated to github.com/golang-jwt/jwt/v5;
// this package adds the key lookup, the optional scope requirement and the
// request plumbing.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sirosfoundation/go-xop/internal/config"
)

var (
	// ErrNoToken indicates no Authorization header or Bearer token was provided.
	ErrNoToken = errors.New("no authorization token provided")

	// ErrInvalidToken wraps every failure to parse, verify or validate a token.
	ErrInvalidToken = errors.New("invalid authorization token")

	// ErrMissingScope indicates the token's scope claim lacks the configured scope.
	ErrMissingScope = errors.New("required scope not granted")

	// Claim failures reported by the JWT parser, wrapped in ErrInvalidToken.
	ErrTokenExpired     = jwt.ErrTokenExpired
	ErrTokenNotYetValid = jwt.ErrTokenNotValidYet
	ErrInvalidIssuer    = jwt.ErrTokenInvalidIssuer
	ErrInvalidAudience  = jwt.ErrTokenInvalidAudience
)

// signingMethods lists the accepted JWS algorithms
var signingMethods = []string{"RS256", "RS384", "RS512"}

// Claims are the token claims the service reads
type Claims struct {
	jwt.RegisteredClaims

	Scope    string `json:"scope,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

// HasAudience checks if the claims include the given audience
func (c *Claims) HasAudience(aud string) bool {
	return slices.Contains(c.Audience, aud)
}

// HasScope checks if the space separated scope claim includes scope
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(strings.Fields(c.Scope), scope)
}

// Authenticator validates bearer tokens against the configured issuer
type Authenticator struct {
	config *config.OAuth2Config
	logger *slog.Logger
	keys   *keySet
	parser *jwt.Parser
}

// NewAuthenticator creates an authenticator. cfg may be nil, in which case
// authentication is disabled.
func NewAuthenticator(cfg *config.OAuth2Config, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Authenticator{config: cfg, logger: logger}
	if !a.IsEnabled() {
		return a
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(signingMethods),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	a.parser = jwt.NewParser(opts...)
	a.keys = newKeySet(cfg.JWKSUrl, logger)
	return a
}

// IsEnabled returns true if OAuth2 authentication is configured
func (a *Authenticator) IsEnabled() bool {
	return a.config != nil && a.config.Issuer != ""
}

// ValidateRequest extracts and validates the bearer token of r
func (a *Authenticator) ValidateRequest(r *http.Request) (*Claims, error) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return nil, ErrNoToken
	}
	return a.ValidateToken(r.Context(), token)
}

// ValidateToken verifies the signature and claims of a JWT
func (a *Authenticator) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	if !a.IsEnabled() {
		return nil, fmt.Errorf("%w: authentication is not configured", ErrInvalidToken)
	}

	claims := &Claims{}
	_, err := a.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return a.keys.key(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if a.config.Scope != "" && !claims.HasScope(a.config.Scope) {
		return nil, ErrMissingScope
	}
	return claims, nil
}

// bearerToken returns the token of a "Bearer <token>" header value
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

type claimsKey struct{}

// ClaimsFromContext retrieves claims stored by ContextWithClaims
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey{}).(*Claims)
	return claims
}

// ContextWithClaims adds claims to ctx
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}
