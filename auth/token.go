package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"say-hi/domain"
)

// jwtKey signs every session token. Loaded from JWT_SECRET at startup;
// the default only exists so tests run without configuration.
var jwtKey = []byte("say-hi-dev-secret-change-me")

// SetSigningKey replaces the signing key. Call once at startup, before
// any token is issued.
func SetSigningKey(key string) {
	if key != "" {
		jwtKey = []byte(key)
	}
}

// CustomClaims is what a session token carries besides the registered set.
type CustomClaims struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed HS256 JWT for a user session.
func GenerateToken(userID string, role domain.Role, duration time.Duration) (string, error) {
	claims := &CustomClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "say-hi",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtKey)
}

// ValidateToken checks the signature and expiration and returns the claims.
func ValidateToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return jwtKey, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
