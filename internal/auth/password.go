// Package auth implements spec.md §4.D: password hashing, API-key
// issuance and verification, JWT access/refresh tokens, and the RBAC
// role/permission matrix.
package auth

import "golang.org/x/crypto/bcrypt"

// passwordCost targets roughly 100ms per hash on commodity hardware,
// per spec.md §4.D.
const passwordCost = 12

// HashPassword bcrypt-hashes a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
