package dispatch

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/coreserve/httpd/core/wire"
)

// Credential is one username/password pair. The credential set is read-only
// after startup and shared by all connections.
type Credential struct {
	User string
	Pass string
}

// AuthGate implements RFC 7617 Basic authentication. Every request is
// authenticated independently; there is no session state.
type AuthGate struct {
	creds []Credential
}

// NewAuthGate builds a gate over an immutable credential set.
func NewAuthGate(creds []Credential) *AuthGate {
	return &AuthGate{creds: creds}
}

// Allow reports whether req carries a well-formed Basic Authorization
// header matching a configured credential. The comparison visits every
// credential with constant-time equality so match position does not leak
// through timing.
func (g *AuthGate) Allow(req *wire.Request) bool {
	header := req.Headers.Get("Authorization")
	const prefix = "Basic "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		return false
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}

	match := 0
	for _, c := range g.creds {
		u := subtle.ConstantTimeCompare([]byte(user), []byte(c.User))
		p := subtle.ConstantTimeCompare([]byte(pass), []byte(c.Pass))
		match |= u & p
	}
	return match == 1
}
