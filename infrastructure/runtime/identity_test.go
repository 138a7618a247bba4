package runtime

import "testing"

func TestStrictIdentityMode(t *testing.T) {
	t.Run("production env", func(t *testing.T) {
		t.Setenv("GATEWAY_ENV", "production")
		ResetStrictIdentityModeCache()
		if !StrictIdentityMode() {
			t.Fatalf("StrictIdentityMode() = false, want true")
		}
	})

	t.Run("explicit override in development", func(t *testing.T) {
		t.Setenv("GATEWAY_ENV", "development")
		t.Setenv("STRICT_IDENTITY_MODE", "1")
		ResetStrictIdentityModeCache()
		if !StrictIdentityMode() {
			t.Fatalf("StrictIdentityMode() = false, want true")
		}
	})

	t.Run("development default", func(t *testing.T) {
		t.Setenv("GATEWAY_ENV", "development")
		t.Setenv("STRICT_IDENTITY_MODE", "")
		ResetStrictIdentityModeCache()
		if StrictIdentityMode() {
			t.Fatalf("StrictIdentityMode() = true, want false")
		}
	})

	t.Run("caches first result", func(t *testing.T) {
		t.Setenv("GATEWAY_ENV", "development")
		t.Setenv("STRICT_IDENTITY_MODE", "")
		ResetStrictIdentityModeCache()
		first := StrictIdentityMode()
		t.Setenv("GATEWAY_ENV", "production")
		if second := StrictIdentityMode(); second != first {
			t.Fatalf("StrictIdentityMode() changed after cache warm: %v -> %v", first, second)
		}
	})
}
