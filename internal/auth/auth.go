// Package auth implements the shared-password gate in front of the
// preparation pages. It is a single comparison against one configured secret
// with no sessions, hashing or rate limiting.
package auth

import (
	"crypto/subtle"
	"sync/atomic"
)

// DefaultPassword is used when neither the config file nor APP_PASSWORD set one.
const DefaultPassword = "AIGTM2025"

// Gate compares submitted passwords against the configured secret.
// It is safe for concurrent use.
type Gate struct {
	secret atomic.Pointer[string]
}

// NewGate creates a Gate for secret. An empty secret selects [DefaultPassword].
func NewGate(secret string) *Gate {
	g := &Gate{}
	g.SetSecret(secret)
	return g
}

// Check reports whether password equals the secret exactly. No trimming or
// case folding is applied.
func (g *Gate) Check(password string) bool {
	secret := *g.secret.Load()
	return subtle.ConstantTimeCompare([]byte(password), []byte(secret)) == 1
}

// SetSecret replaces the secret. An empty secret selects [DefaultPassword].
func (g *Gate) SetSecret(secret string) {
	if secret == "" {
		secret = DefaultPassword
	}
	g.secret.Store(&secret)
}
