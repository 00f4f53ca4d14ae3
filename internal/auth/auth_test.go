package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-xop/internal/config"
)

const testIssuer = "https://auth.example.com"

type testIDP struct {
	key     *rsa.PrivateKey
	kid     string
	server  *httptest.Server
	fetches atomic.Int32
}

func newTestIDP(t *testing.T) *testIDP {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	idp := &testIDP{key: key, kid: "key-1"}
	idp.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idp.fetches.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"keys": []jsonWebKey{
			{Kid: "enc-1", Kty: "RSA", Use: "enc", N: "AQAB", E: "AQAB"},
			{Kid: "ec-1", Kty: "EC"},
			{
				Kid: idp.kid,
				Kty: "RSA",
				Use: "sig",
				N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			},
		}})
	}))
	t.Cleanup(idp.server.Close)
	return idp
}

func (idp *testIDP) config() *config.OAuth2Config {
	return &config.OAuth2Config{
		Issuer:   testIssuer,
		Audience: "xop",
		JWKSUrl:  idp.server.URL,
	}
}

func (idp *testIDP) sign(t *testing.T, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	token.Header["kid"] = idp.kid
	signed, err := token.SignedString(idp.key)
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":   testIssuer,
		"sub":   "proxy",
		"aud":   "xop",
		"iat":   now.Unix(),
		"exp":   now.Add(5 * time.Minute).Unix(),
		"scope": "xop:read xop:write",
	}
}

func TestAuthenticator_Disabled(t *testing.T) {
	assert.False(t, NewAuthenticator(nil, nil).IsEnabled())
	assert.False(t, NewAuthenticator(&config.OAuth2Config{}, nil).IsEnabled())
	assert.True(t, NewAuthenticator(&config.OAuth2Config{Issuer: testIssuer}, nil).IsEnabled())

	_, err := NewAuthenticator(nil, nil).ValidateToken(context.Background(), "a.b.c")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticator_ValidateRequest(t *testing.T) {
	idp := newTestIDP(t)
	auth := NewAuthenticator(idp.config(), nil)

	for _, method := range []jwt.SigningMethod{jwt.SigningMethodRS256, jwt.SigningMethodRS384, jwt.SigningMethodRS512} {
		t.Run(method.Alg(), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/xop/edit_1", nil)
			req.Header.Set("Authorization", "Bearer "+idp.sign(t, method, validClaims()))

			claims, err := auth.ValidateRequest(req)
			require.NoError(t, err)
			assert.Equal(t, "proxy", claims.Subject)
			assert.True(t, claims.HasAudience("xop"))
			assert.True(t, claims.HasScope("xop:write"))
			assert.False(t, claims.HasScope("xop"))
		})
	}

	// every validation after the first is served from the cached key set
	assert.Equal(t, int32(1), idp.fetches.Load())
}

func TestAuthenticator_NoToken(t *testing.T) {
	auth := NewAuthenticator(&config.OAuth2Config{Issuer: testIssuer}, nil)

	for _, header := range []string{"", "Basic dXNlcjpwYXNz", "Bearer", "Bearer   "} {
		req := httptest.NewRequest(http.MethodPost, "/xop/edit_1", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		_, err := auth.ValidateRequest(req)
		assert.ErrorIs(t, err, ErrNoToken, header)
	}
}

func TestAuthenticator_RejectsClaims(t *testing.T) {
	idp := newTestIDP(t)
	cfg := idp.config()
	cfg.Scope = "xop:admin"
	auth := NewAuthenticator(cfg, nil)

	tests := []struct {
		name   string
		mutate func(jwt.MapClaims)
		want   error
	}{
		{"expired", func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Minute).Unix() }, ErrTokenExpired},
		{"no expiry", func(c jwt.MapClaims) { delete(c, "exp") }, jwt.ErrTokenRequiredClaimMissing},
		{"not yet valid", func(c jwt.MapClaims) { c["nbf"] = time.Now().Add(time.Hour).Unix() }, ErrTokenNotYetValid},
		{"issuer", func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com" }, ErrInvalidIssuer},
		{"audience", func(c jwt.MapClaims) { c["aud"] = []string{"other"} }, ErrInvalidAudience},
		{"scope", func(c jwt.MapClaims) {}, ErrMissingScope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			tt.mutate(claims)
			_, err := auth.ValidateToken(context.Background(), idp.sign(t, jwt.SigningMethodRS256, claims))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthenticator_InvalidTokens(t *testing.T) {
	idp := newTestIDP(t)
	auth := NewAuthenticator(idp.config(), nil)
	valid := idp.sign(t, jwt.SigningMethodRS256, validClaims())

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	forger := &testIDP{key: other, kid: idp.kid}

	unknownKid := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims())
	unknownKid.Header["kid"] = "rotated-away"
	unknownKidToken, err := unknownKid.SignedString(idp.key)
	require.NoError(t, err)

	hmac, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims()).SignedString([]byte("shared"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"malformed", "not-a-jwt"},
		{"wrong key", forger.sign(t, jwt.SigningMethodRS256, validClaims())},
		{"truncated signature", valid[:len(valid)-4]},
		{"unknown key id", unknownKidToken},
		{"symmetric algorithm", hmac},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.ValidateToken(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestAuthenticator_UnknownKeyIDRefetchIsThrottled(t *testing.T) {
	idp := newTestIDP(t)
	auth := NewAuthenticator(idp.config(), nil)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims())
	token.Header["kid"] = "rotated-away"
	signed, err := token.SignedString(idp.key)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := auth.ValidateToken(context.Background(), signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
	assert.Equal(t, int32(1), idp.fetches.Load())
}

func TestJSONWebKey_RSAPublicKey(t *testing.T) {
	_, err := jsonWebKey{Kty: "EC"}.rsaPublicKey()
	assert.ErrorContains(t, err, "unsupported key type")

	_, err = jsonWebKey{Kty: "RSA", N: "!!", E: "AQAB"}.rsaPublicKey()
	assert.ErrorContains(t, err, "modulus")

	_, err = jsonWebKey{Kty: "RSA", N: "AQAB", E: "AQ"}.rsaPublicKey()
	assert.ErrorContains(t, err, "exponent")

	pub, err := jsonWebKey{Kty: "RSA", N: "AQAB", E: "AQAB"}.rsaPublicKey()
	require.NoError(t, err)
	assert.Equal(t, 65537, pub.E)
}

func TestClaims_Audience(t *testing.T) {
	var single, multi Claims
	require.NoError(t, json.Unmarshal([]byte(`{"aud":"xop"}`), &single))
	require.NoError(t, json.Unmarshal([]byte(`{"aud":["a","xop"]}`), &multi))

	assert.True(t, single.HasAudience("xop"))
	assert.True(t, multi.HasAudience("xop"))
	assert.False(t, multi.HasAudience("b"))
}

func TestContextWithClaims(t *testing.T) {
	assert.Nil(t, ClaimsFromContext(context.Background()))

	claims := &Claims{Scope: "xop:write"}
	ctx := ContextWithClaims(context.Background(), claims)
	assert.Same(t, claims, ClaimsFromContext(ctx))
}
