package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/relaygate/gateway/internal/storage"
)

// TokenType distinguishes a short-lived access token from a longer-lived
// refresh token (spec.md §4.D).
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// ErrWrongTokenType is returned when a token's type claim doesn't match
// the type the caller asked to verify.
var ErrWrongTokenType = errors.New("auth: unexpected token type")

// Claims is the gateway's JWT payload.
type Claims struct {
	UserID   string          `json:"user_id"`
	Username string          `json:"username"`
	Role     storage.UserRole `json:"role"`
	Type     TokenType       `json:"type"`
	jwt.RegisteredClaims
}

// TokenIssuer issues and verifies HS256 JWTs signed with a shared
// secret (JWT_SECRET_KEY).
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), accessTTL: defaultAccessTTL, refreshTTL: defaultRefreshTTL}
}

// Issue mints a token of the given type for u.
func (t *TokenIssuer) Issue(u *storage.User, tokenType TokenType) (string, time.Time, error) {
	ttl := t.accessTTL
	if tokenType == TokenRefresh {
		ttl = t.refreshTTL
	}
	expiresAt := time.Now().Add(ttl)

	claims := Claims{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
		Type:     tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates raw, requiring its type claim to equal
// expectedType.
func (t *TokenIssuer) Verify(raw string, expectedType TokenType) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth: parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("auth: invalid token")
	}
	if claims.Type != expectedType {
		return nil, ErrWrongTokenType
	}
	return &claims, nil
}
