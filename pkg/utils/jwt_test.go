package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		token, err := GenerateToken("secret", "u1", RoleAdmin, time.Hour)
		require.NoError(t, err)

		claims, err := ParseToken("secret", token)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.UserID)
		assert.Equal(t, RoleAdmin, claims.Role)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := GenerateToken("secret", "u1", RoleUser, time.Hour)
		require.NoError(t, err)

		_, err = ParseToken("other", token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := GenerateToken("secret", "u1", RoleUser, -time.Minute)
		require.NoError(t, err)

		_, err = ParseToken("secret", token)
		assert.Error(t, err)
	})
}
