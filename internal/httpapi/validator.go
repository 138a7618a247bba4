package httpapi

import (
	"context"
	"time"

	"github.com/relaygate/gateway/internal/auth"
)

// credentialValidator resolves a credential presented to the §4.J
// API-key gate: a JWT access token first, falling back to a hashed
// API-key lookup, satisfying middleware.APIKeyValidator.
type credentialValidator struct {
	deps Deps
}

func (v *credentialValidator) ValidateAPIKey(ctx context.Context, credential string) (string, bool) {
	if v.deps.Config.ValidAPIKey != "" && credential == v.deps.Config.ValidAPIKey {
		return "static-api-key", true
	}
	if v.deps.Config.MobileAPIKey != "" && credential == v.deps.Config.MobileAPIKey && v.deps.Config.API.EnableMobile {
		return "mobile", true
	}

	if claims, err := v.deps.Issuer.Verify(credential, auth.TokenAccess); err == nil {
		return claims.UserID, true
	}

	hash := auth.HashAPIKey(credential)
	user, key, err := v.deps.Storage.GetUserByAPIKeyHash(ctx, hash)
	if err != nil || user == nil || key == nil {
		return "", false
	}
	if key.Revoked() || key.Expired(time.Now()) {
		return "", false
	}
	return user.ID, true
}
