package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"petshop/model"
)

func TestTokenRoundTrip(t *testing.T) {
	u := &model.User{ID: 7, Email: "a@b.c", Role: model.RoleAdmin}
	token, expires, err := IssueToken(u, "s3cret", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := ParseToken(token, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, model.RoleAdmin, claims.Role)

	_, err = ParseToken(token, "other")
	assert.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	token, _, err := IssueToken(&model.User{ID: 1}, "s3cret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(token, "s3cret")
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("123456")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "123456"))
	assert.False(t, CheckPassword(hash, "654321"))
	assert.Error(t, validatePassword("12345"))
	assert.NoError(t, validatePassword("猫猫猫猫猫猫"))
}
