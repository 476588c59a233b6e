package http

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominic-g/wp-api-rate-limiter/config"
)

func TestIdentityExtractor_ValidToken(t *testing.T) {
	extractor := NewIdentityExtractor(config.AuthConfig{JWTSecret: testJWTSecret})

	identity := extractor.FromAuthorizationHeader("Bearer " + signedToken(t, "42", "editor"))

	require.NotNil(t, identity)
	assert.Equal(t, "42", identity.UserID)
	assert.Equal(t, "editor", identity.Role)
}

func TestIdentityExtractor_CaseInsensitiveBearerPrefix(t *testing.T) {
	extractor := NewIdentityExtractor(config.AuthConfig{JWTSecret: testJWTSecret})

	identity := extractor.FromAuthorizationHeader("bearer " + signedToken(t, "7", ""))

	require.NotNil(t, identity)
	assert.Equal(t, "7", identity.UserID)
	assert.Empty(t, identity.Role)
}

func TestIdentityExtractor_WrongSignature(t *testing.T) {
	extractor := NewIdentityExtractor(config.AuthConfig{JWTSecret: "a-different-secret"})

	identity := extractor.FromAuthorizationHeader("Bearer " + signedToken(t, "42", "editor"))

	assert.Nil(t, identity)
}

func TestIdentityExtractor_ExpiredToken(t *testing.T) {
	extractor := NewIdentityExtractor(config.AuthConfig{JWTSecret: testJWTSecret})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "42",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	assert.Nil(t, extractor.FromAuthorizationHeader("Bearer "+signed))
}

func TestIdentityExtractor_IssuerMismatch(t *testing.T) {
	extractor := NewIdentityExtractor(config.AuthConfig{
		JWTSecret: testJWTSecret,
		Issuer:    "wp.example.com",
	})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "42",
		"iss": "somewhere-else",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	assert.Nil(t, extractor.FromAuthorizationHeader("Bearer "+signed))
}

func TestIdentityExtractor_MatchingIssuer(t *testing.T) {
	extractor := NewIdentityExtractor(config.AuthConfig{
		JWTSecret: testJWTSecret,
		Issuer:    "wp.example.com",
	})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "42",
		"iss": "wp.example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	identity := extractor.FromAuthorizationHeader("Bearer " + signed)
	require.NotNil(t, identity)
	assert.Equal(t, "42", identity.UserID)
}

func TestIdentityExtractor_MissingSubject(t *testing.T) {
	extractor := NewIdentityExtractor(config.AuthConfig{JWTSecret: testJWTSecret})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "editor",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	assert.Nil(t, extractor.FromAuthorizationHeader("Bearer "+signed))
}

func TestIdentityExtractor_MalformedHeaders(t *testing.T) {
	extractor := NewIdentityExtractor(config.AuthConfig{JWTSecret: testJWTSecret})

	for _, header := range []string{
		"",
		"Bearer",
		"Basic dXNlcjpwYXNz",
		"Bearer not.a.token",
	} {
		assert.Nil(t, extractor.FromAuthorizationHeader(header), "header %q", header)
	}
}

func TestIdentityExtractor_NoSecretConfigured(t *testing.T) {
	extractor := NewIdentityExtractor(config.AuthConfig{})

	assert.Nil(t, extractor.FromAuthorizationHeader("Bearer "+signedToken(t, "42", "editor")))
}

func TestIdentityExtractor_UnsignedTokenRejected(t *testing.T) {
	extractor := NewIdentityExtractor(config.AuthConfig{JWTSecret: testJWTSecret})

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	assert.Nil(t, extractor.FromAuthorizationHeader("Bearer "+signed))
}
