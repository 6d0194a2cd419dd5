package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arklim/social-platform-sessions/internal/core/domain"
)

var (
	// ErrExpiredAccessToken indicates the token was valid but has expired.
	ErrExpiredAccessToken = errors.New("access token expired")
	// ErrInvalidAccessToken indicates the token failed validation.
	ErrInvalidAccessToken = errors.New("invalid access token")
)

// AccessClaims carries the actor identity the host CMS embeds in its
// access tokens. The sid claim is the verifier of the actor's own session.
type AccessClaims struct {
	jwt.RegisteredClaims
	SessionVerifier string   `json:"sid,omitempty"`
	Capabilities    []string `json:"caps,omitempty"`
}

// JWTManager parses and issues HS256 access tokens shared with the host.
type JWTManager struct {
	secret []byte
	issuer string
}

// NewJWTManager constructs a manager from the shared signing secret.
func NewJWTManager(secret, issuer string) (*JWTManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &JWTManager{secret: []byte(secret), issuer: issuer}, nil
}

// ParseAccessToken validates the token and returns the actor it identifies.
func (m *JWTManager) ParseAccessToken(token string) (domain.Actor, error) {
	claims := &AccessClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Actor{}, ErrExpiredAccessToken
		}
		return domain.Actor{}, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	}
	if !parsed.Valid {
		return domain.Actor{}, ErrInvalidAccessToken
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return domain.Actor{}, fmt.Errorf("%w: missing subject", ErrInvalidAccessToken)
	}

	return domain.Actor{
		UserID:       subject,
		Verifier:     claims.SessionVerifier,
		Capabilities: claims.Capabilities,
	}, nil
}

// IssueAccessToken mints a token for the actor, used by tests and tooling.
func (m *JWTManager) IssueAccessToken(actor domain.Actor, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}

	now := time.Now().UTC()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		SessionVerifier: actor.Verifier,
		Capabilities:    actor.Capabilities,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return token, nil
}
