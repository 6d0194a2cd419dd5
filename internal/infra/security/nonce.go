package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const nonceLength = 16

// NonceProvider issues and verifies anti-forgery tokens scoped to an
// (action, target user) pair. Tokens are valid for the current and the
// immediately preceding half-lifetime window, so a token survives at least
// half the configured lifetime and at most the full lifetime.
type NonceProvider struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewNonceProvider constructs a provider from a shared secret.
func NewNonceProvider(secret string, lifetime time.Duration) (*NonceProvider, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("nonce secret is required")
	}
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}

	provider := &NonceProvider{
		secret:   []byte(secret),
		lifetime: lifetime,
	}
	provider.now = func() time.Time { return time.Now().UTC() }
	return provider, nil
}

// WithClock overrides the internal clock for deterministic tests.
func (p *NonceProvider) WithClock(clock func() time.Time) *NonceProvider {
	if clock != nil {
		p.now = clock
	}
	return p
}

// Create issues a token for the action against the target user.
func (p *NonceProvider) Create(action, targetUserID string) string {
	return p.tokenAt(action, targetUserID, p.tick(0))
}

// Verify reports whether the token is valid for the action and target in the
// current or previous window.
func (p *NonceProvider) Verify(action, targetUserID, token string) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}

	for offset := int64(0); offset <= 1; offset++ {
		expected := p.tokenAt(action, targetUserID, p.tick(offset))
		if subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 1 {
			return true
		}
	}
	return false
}

func (p *NonceProvider) tick(offset int64) int64 {
	window := int64(p.lifetime / 2 / time.Second)
	if window <= 0 {
		window = 1
	}
	return p.now().Unix()/window - offset
}

func (p *NonceProvider) tokenAt(action, targetUserID string, tick int64) string {
	mac := hmac.New(sha256.New, p.secret)
	fmt.Fprintf(mac, "%d|%s|%s", tick, action, targetUserID)
	return hex.EncodeToString(mac.Sum(nil))[:nonceLength]
}
