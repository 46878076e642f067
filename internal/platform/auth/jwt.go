// Package auth verifies the bearer tokens issued by the backend's auth service.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatflowers/membership/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/fx"
)

// ErrUnauthorized is returned for a missing, malformed, expired or forged token.
var ErrUnauthorized = errors.New("unauthorized")

// Claims are the session claims of a backend access token. The subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified caller.
type Identity struct {
	UserID string
	Email  string
}

// Verifier checks HS256 tokens against the shared secret.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(cfg *config.Config) *Verifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Auth.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Auth.Issuer))
	}
	return &Verifier{secret: []byte(cfg.Auth.JWTSecret), parser: jwt.NewParser(opts...)}
}

// Verify parses token and returns the identity it carries.
func (v *Verifier) Verify(token string) (*Identity, error) {
	if token == "" || len(v.secret) == 0 {
		return nil, ErrUnauthorized
	}
	var claims Claims
	_, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	return &Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

var Module = fx.Options(
	fx.Provide(NewVerifier),
)
