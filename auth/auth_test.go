package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"say-hi/domain"
	"say-hi/errors"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MonMotDePasseTr0pSûr!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("MauvaisMDP", hash)
	req.NoError(err)
	req.False(match)
}

func TestRegistrationValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"Alice", "test@example.com", "ComplexPass123!"}, false},
		{"Missing name", RegisterRequest{"", "test@example.com", "ComplexPass123!"}, true},
		{"Invalid email", RegisterRequest{"Alice", "notanemail", "ComplexPass123!"}, true},
		{"Password too short", RegisterRequest{"Alice", "test@example.com", "Short1!"}, true},
		{"Missing digit", RegisterRequest{"Alice", "test@example.com", "NoDigitPassword!"}, true},
		{"Missing special char", RegisterRequest{"Alice", "test@example.com", "NoSpecialChar1234"}, true},
		{"Missing uppercase", RegisterRequest{"Alice", "test@example.com", "nouppercase12345!"}, true},
		{"Password too long", RegisterRequest{"Alice", "test@example.com", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestComplexityErrorIsTyped(t *testing.T) {
	req := require.New(t)
	err := ValidateRegister(RegisterRequest{"Alice", "test@example.com", "alllowercase1234"})
	req.ErrorIs(err, errors.ErrInvalidPassword)
}

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-42", domain.RoleUser, time.Hour)
	req.NoError(err)

	claims, err := ValidateToken(token)
	req.NoError(err)
	req.Equal("user-42", claims.UserID)
	req.Equal(domain.RoleUser, claims.Role)
	req.Equal("say-hi", claims.Issuer)
}

func TestExpiredTokenRejected(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-42", domain.RoleUser, -time.Minute)
	req.NoError(err)

	_, err = ValidateToken(token)
	req.Error(err)
}

func TestTamperedTokenRejected(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-42", domain.RoleAdmin, time.Hour)
	req.NoError(err)

	_, err = ValidateToken(token + "x")
	req.Error(err)
}

func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
