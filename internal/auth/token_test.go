package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aigc/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "aigc", time.Hour)
	token, err := tm.Generate(&domain.User{ID: "u1", Username: "alice", Role: domain.UserRoleAdmin})
	require.NoError(t, err)

	claims, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, domain.UserRoleAdmin, claims.Role)
}

func TestVerifyRejects(t *testing.T) {
	tm := NewTokenManager("secret", "aigc", time.Hour)
	user := &domain.User{ID: "u1", Username: "alice", Role: domain.UserRoleUser}
	token, err := tm.Generate(user)
	require.NoError(t, err)

	_, err = NewTokenManager("other", "aigc", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokenManager("secret", "someone-else", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tm.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	late := NewTokenManager("secret", "aigc", time.Hour)
	late.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = late.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))
	assert.False(t, CheckPassword("", "hunter22"))
}
