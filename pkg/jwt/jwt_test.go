package jwt

import (
	"errors"
	"testing"
	"time"

	apperrors "pet_chat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	tok, err := Generate(Claims{
		UserID:      "6f1c7c1e-8a39-4df3-9d0c-8f4c3b1a2e55",
		Email:       "anna@example.com",
		DisplayName: "Anna",
		Roles:       []string{"user", "admin"},
	}, "secret", "pet-auth", time.Hour)
	require.NoError(t, err)

	claims, err := Parse(tok, "secret", "pet-auth")
	require.NoError(t, err)
	assert.Equal(t, "6f1c7c1e-8a39-4df3-9d0c-8f4c3b1a2e55", claims.UserID)
	assert.Equal(t, claims.UserID, claims.Subject)
	assert.Equal(t, "Anna", claims.DisplayName)
	assert.True(t, claims.HasRole("admin"))
	assert.True(t, claims.HasRole("service", "user"))
	assert.False(t, claims.HasRole("service"))

	// Пустой issuer не проверяется
	_, err = Parse(tok, "secret", "")
	assert.NoError(t, err)
}

func TestParseRejects(t *testing.T) {
	valid, err := Generate(Claims{UserID: "u-1"}, "secret", "pet-auth", time.Hour)
	require.NoError(t, err)
	expired, err := Generate(Claims{UserID: "u-1"}, "secret", "pet-auth", -time.Minute)
	require.NoError(t, err)
	anonymous, err := Generate(Claims{}, "secret", "pet-auth", time.Hour)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		secret  string
		issuer  string
		wantErr error
	}{
		{"wrong secret", valid, "other", "pet-auth", apperrors.ErrInvalidToken},
		{"wrong issuer", valid, "secret", "someone-else", apperrors.ErrInvalidToken},
		{"expired", expired, "secret", "pet-auth", apperrors.ErrTokenExpired},
		{"no user id", anonymous, "secret", "pet-auth", apperrors.ErrInvalidToken},
		{"unsigned", none, "secret", "", apperrors.ErrInvalidToken},
		{"garbage", "not.a.token", "secret", "", apperrors.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.token, tt.secret, tt.issuer)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}
