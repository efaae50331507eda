package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)

	token, err := m.Generate("user-1", true)
	require.NoError(t, err)

	claims, err := m.FromHeader("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.True(t, claims.Anonymous)
}

func TestValidateRejects(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	valid, err := m.Generate("user-1", false)
	require.NoError(t, err)

	expired, err := NewJWTManager("secret", -time.Minute).Generate("user-1", false)
	require.NoError(t, err)

	otherKey, err := NewJWTManager("other", time.Hour).Generate("user-1", false)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "user-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{"missing", "", ErrMissingToken},
		{"wrong scheme", "Basic " + valid, ErrInvalidToken},
		{"no token", "Bearer ", ErrInvalidToken},
		{"expired", "Bearer " + expired, ErrInvalidToken},
		{"other key", "Bearer " + otherKey, ErrInvalidToken},
		{"alg none", "Bearer " + none, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.FromHeader(tt.header)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
