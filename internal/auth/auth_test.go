package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	iss, err := NewIssuer("secret", time.Hour)
	require.NoError(t, err)

	identity, token, err := iss.IssueAnonymous()
	require.NoError(t, err)
	_, err = uuid.Parse(identity)
	require.NoError(t, err, "identity should be a uuid")

	got, err := iss.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, identity, got)
}

func TestVerifyRejectsOtherKey(t *testing.T) {
	a, err := NewIssuer("one", time.Hour)
	require.NoError(t, err)
	b, err := NewIssuer("two", time.Hour)
	require.NoError(t, err)

	token, err := a.Issue("player")
	require.NoError(t, err)
	_, err = b.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSameSecretSameKey(t *testing.T) {
	a, err := NewIssuer("shared", time.Hour)
	require.NoError(t, err)
	b, err := NewIssuer("shared", time.Hour)
	require.NoError(t, err)

	token, err := a.Issue("player")
	require.NoError(t, err)
	got, err := b.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "player", got)
}

func TestVerifyExpired(t *testing.T) {
	iss, err := NewIssuer("secret", time.Minute)
	require.NoError(t, err)
	start := time.Now()
	iss.now = func() time.Time { return start }

	token, err := iss.Issue("player")
	require.NoError(t, err)

	iss.now = func() time.Time { return start.Add(2 * time.Minute) }
	_, err = iss.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyGarbage(t *testing.T) {
	iss, err := NewIssuer("", 0)
	require.NoError(t, err)
	_, err = iss.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
