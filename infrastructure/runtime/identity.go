// Package runtime provides environment/runtime detection helpers shared across the service layer.
package runtime

import (
	"strings"
	"sync"
)

// strictIdentityModeOnce caches the strict identity mode check at startup.
var (
	strictIdentityModeOnce  sync.Once
	strictIdentityModeValue bool
)

// ResetStrictIdentityModeCache resets the cached strict identity mode value.
// This should only be used in tests.
func ResetStrictIdentityModeCache() {
	strictIdentityModeOnce = sync.Once{}
	strictIdentityModeValue = false
}

// ResetEnvCache is a test hook paired with ResetStrictIdentityModeCache.
// Env() itself reads os.Getenv on every call and caches nothing, but tests
// that flip GATEWAY_ENV alongside strict-identity settings call both resets
// together so the two can be repointed without leaving stale state in one.
func ResetEnvCache() {}

// StrictIdentityMode returns true when the service should fail closed on
// identity/security boundaries — for example, only trusting forwarded
// identity headers (X-Forwarded-User, X-Client-Cert-CN) when the connection
// is backed by verified mTLS rather than a plain reverse-proxy header.
//
// Production always runs strict; STRICT_IDENTITY_MODE=1 lets an operator
// opt a non-production environment into the same behavior for staging
// parity tests.
func StrictIdentityMode() bool {
	strictIdentityModeOnce.Do(func() {
		env := Env()
		override := strings.TrimSpace(ResolveString("", "STRICT_IDENTITY_MODE", ""))
		strictIdentityModeValue = env == Production || ParseBoolValue(override)
	})
	return strictIdentityModeValue
}
