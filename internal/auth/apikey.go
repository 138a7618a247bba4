package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// keyBytes is the raw entropy of a generated API key (spec.md §4.D: a
// 32-byte base64url random value).
const keyBytes = 32

// apiKeyPrefixLen is how many characters of the raw key are exposed as
// a bucket identity for rate limiting (§4.C) without revealing the key.
const apiKeyPrefixLen = 8

// GenerateAPIKey returns a fresh raw API key. The caller must show this
// value to the user exactly once; only its SHA-256 hash is ever stored.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate api key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashAPIKey returns the hex-encoded SHA-256 digest of a raw API key,
// the only form the storage backend ever persists.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// KeyPrefix returns a short, non-secret prefix of a raw API key, used as
// the rate-limiter bucket identity (spec.md §4.C: API-key prefix
// preferred over network address).
func KeyPrefix(raw string) string {
	if len(raw) <= apiKeyPrefixLen {
		return raw
	}
	return raw[:apiKeyPrefixLen]
}
