package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pbaille/learnlog/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "session.yaml"))
	require.NoError(t, err)
	assert.False(t, s.LoggedIn())
	assert.Nil(t, s.User())
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.yaml")
	s, err := Load(path)
	require.NoError(t, err)

	user := &domain.User{ID: "u1", Email: "ada@example.com", Name: "Ada", CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	s.Set("tok-123", user)
	require.NoError(t, s.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.True(t, reloaded.LoggedIn())
	assert.Equal(t, "tok-123", reloaded.Token())
	require.NotNil(t, reloaded.User())
	assert.Equal(t, "ada@example.com", reloaded.User().Email)
	assert.True(t, user.CreatedAt.Equal(reloaded.User().CreatedAt))
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	s, err := Load(path)
	require.NoError(t, err)
	s.Set("tok", &domain.User{ID: "u1"})
	require.NoError(t, s.Save())

	require.NoError(t, s.Clear())
	assert.False(t, s.LoggedIn())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// clearing twice is fine
	require.NoError(t, s.Clear())
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte("token: [unterminated"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}
