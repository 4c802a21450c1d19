package session

import (
	"testing"

	"github.com/omnifs/omnifs/internal/container"
	"github.com/stretchr/testify/require"
)

func TestCreateAndValidate(t *testing.T) {
	m := NewManager(60)
	s, err := m.Create("alice", container.RoleNormal, 1000)
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)

	got, ok := m.Validate(s.ID, 1001)
	require.True(t, ok)
	require.Equal(t, "alice", got.Username)
	require.EqualValues(t, 1, got.OperationsCount)
}

func TestValidateExpires(t *testing.T) {
	m := NewManager(60)
	s, err := m.Create("alice", container.RoleNormal, 1000)
	require.NoError(t, err)

	_, ok := m.Validate(s.ID, 1061)
	require.False(t, ok)

	_, ok = m.Validate(s.ID, 1062)
	require.False(t, ok)
}

func TestLogoutDropsSession(t *testing.T) {
	m := NewManager(60)
	s, err := m.Create("alice", container.RoleNormal, 1000)
	require.NoError(t, err)

	m.Logout(s.ID)
	_, ok := m.Validate(s.ID, 1001)
	require.False(t, ok)
}

func TestSweepRemovesExpired(t *testing.T) {
	m := NewManager(10)
	_, err := m.Create("alice", container.RoleNormal, 0)
	require.NoError(t, err)

	require.Equal(t, 1, m.Count())
	n := m.Sweep(100)
	require.Equal(t, 1, n)
	require.Equal(t, 0, m.Count())
}

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	require.True(t, VerifyPassword(hash, "s3cret"))
	require.False(t, VerifyPassword(hash, "wrong"))
}

func TestHashPasswordUniqueSalt(t *testing.T) {
	h1, err := HashPassword("same")
	require.NoError(t, err)
	h2, err := HashPassword("same")
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}
