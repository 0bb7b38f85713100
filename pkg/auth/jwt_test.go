package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() JWTConfig {
	return JWTConfig{
		SecretKey: "test-secret",
		Issuer:    "mindmap-backend",
		Audience:  []string{"mindmap-api"},
	}
}

func TestJWT_RoundTrip(t *testing.T) {
	gen, err := NewJWTGenerator(testConfig(), time.Hour)
	require.NoError(t, err)
	validator, err := NewJWTValidator(testConfig())
	require.NoError(t, err)

	token, err := gen.GenerateToken("user-1", "ada@example.com", 4)
	require.NoError(t, err)

	claims, err := validator.ValidateToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, 4, claims.RoleID)
}

func TestJWT_Rejections(t *testing.T) {
	validator, err := NewJWTValidator(testConfig())
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := validator.ValidateToken("  ")
		assert.ErrorIs(t, err, ErrMissingToken)
	})

	t.Run("expired", func(t *testing.T) {
		gen, err := NewJWTGenerator(testConfig(), -time.Minute)
		require.NoError(t, err)
		token, err := gen.GenerateToken("user-1", "", 4)
		require.NoError(t, err)

		_, err = validator.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		cfg := testConfig()
		cfg.SecretKey = "other"
		gen, err := NewJWTGenerator(cfg, time.Hour)
		require.NoError(t, err)
		token, err := gen.GenerateToken("user-1", "", 4)
		require.NoError(t, err)

		_, err = validator.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("wrong audience", func(t *testing.T) {
		cfg := testConfig()
		cfg.Audience = []string{"someone-else"}
		gen, err := NewJWTGenerator(cfg, time.Hour)
		require.NoError(t, err)
		token, err := gen.GenerateToken("user-1", "", 4)
		require.NoError(t, err)

		_, err = validator.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})

	t.Run("missing role", func(t *testing.T) {
		gen, err := NewJWTGenerator(testConfig(), time.Hour)
		require.NoError(t, err)
		token, err := gen.GenerateToken("user-1", "", 0)
		require.NoError(t, err)

		_, err = validator.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})
}

func TestUserContext(t *testing.T) {
	_, err := GetUserFromContext(context.Background())
	assert.Error(t, err)

	ctx := SetUserInContext(context.Background(), &UserContext{UserID: "u", RoleID: 8})
	user, err := GetUserFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, user.RoleID)
	assert.False(t, user.IsPublic())
	assert.True(t, (&UserContext{RoleID: 10}).IsPublic())
}
