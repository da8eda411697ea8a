// Package websub verifies the HMAC signature carried on inbound hub pushes.
package websub

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"hash"
	"strings"
)

var algos = map[string]func() hash.Hash{
	"sha1":   sha1.New,
	"sha256": sha256.New,
}

// Verify checks the "<algo>=<hexdigest>" signature header against an HMAC of
// the exact raw body. Comparison is case-insensitive and constant-time. An
// empty secret always fails: unconfigured deployments reject rather than
// skip the check.
func Verify(secret string, body []byte, header string) bool {
	if secret == "" {
		return false
	}

	algo, digest, found := strings.Cut(strings.ToLower(strings.TrimSpace(header)), "=")
	if !found {
		return false
	}
	newHash, ok := algos[algo]
	if !ok {
		return false
	}

	presented, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}

	mac := hmac.New(newHash, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), presented)
}

// TokenMatch compares the configured verify token against a caller-supplied
// one in constant time. An empty configured token matches nothing.
func TokenMatch(configured, presented string) bool {
	if configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}
