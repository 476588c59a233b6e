package http

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dominic-g/wp-api-rate-limiter/config"
	"github.com/dominic-g/wp-api-rate-limiter/domain/entity"
)

// IdentityExtractor derives the caller identity from the Authorization
// header. Extraction is best-effort: anything short of a valid signed token
// classifies the caller as unauthenticated rather than failing the request.
// Admission control is not an authentication layer.
type IdentityExtractor struct {
	secret []byte
	parser *jwt.Parser
}

// NewIdentityExtractor creates the JWT-based identity extractor.
func NewIdentityExtractor(cfg config.AuthConfig) *IdentityExtractor {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &IdentityExtractor{
		secret: []byte(cfg.JWTSecret),
		parser: jwt.NewParser(opts...),
	}
}

// FromAuthorizationHeader returns the identity carried by a Bearer token, or
// nil for unauthenticated callers.
func (e *IdentityExtractor) FromAuthorizationHeader(header string) *entity.Identity {
	if len(e.secret) == 0 || header == "" {
		return nil
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil
	}

	claims := jwt.MapClaims{}
	token, err := e.parser.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
		return e.secret, nil
	})
	if err != nil || !token.Valid {
		return nil
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil
	}

	identity := &entity.Identity{UserID: subject}
	if role, ok := claims["role"].(string); ok {
		identity.Role = role
	}
	return identity
}
