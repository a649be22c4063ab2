package utils

import (
	"crypto/subtle"
	"strings"
)

// SecureCompare performs constant-time string comparison.
// This MUST be used when comparing API keys.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// MatchesAnyKey reports whether candidate equals one of keys, checking every
// key so the time taken does not depend on which one matched
func MatchesAnyKey(candidate string, keys []string) bool {
	matched := false
	for _, key := range keys {
		if SecureCompare(candidate, key) {
			matched = true
		}
	}
	return matched
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
