package vault

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menagerie/internal/api"
	"menagerie/internal/config"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	store := config.NewStore(filepath.Join(t.TempDir(), "menagerie.yaml"))
	require.NoError(t, store.Load())
	return NewManager(store)
}

func TestAddAndListRedacts(t *testing.T) {
	m := testManager(t)

	id, err := m.Add("main-bot", "MTAxMjM0NTY3ODkwLnNlY3JldC50b2tlbg")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	infos := m.List()
	require.Len(t, infos, 1)
	assert.Equal(t, "main-bot", infos[0].Name)
	assert.True(t, infos[0].Active)
	assert.Equal(t, "MTAx...tlbg", infos[0].Display)
	assert.NotContains(t, infos[0].Display, "NTY3ODkw")
}

func TestAddRejectsEmptyAndDuplicate(t *testing.T) {
	m := testManager(t)

	_, err := m.Add("", "token-value-long-enough")
	assert.True(t, api.IsConfigError(err))

	_, err = m.Add("bot", "  ")
	assert.True(t, api.IsConfigError(err))

	_, err = m.Add("bot", "first-token-value-xyz")
	require.NoError(t, err)
	_, err = m.Add("bot", "second-token-value-xyz")
	assert.True(t, api.IsConfigError(err), "duplicate name must be rejected")
}

func TestTokenOnlyForActiveCredentials(t *testing.T) {
	m := testManager(t)

	id, err := m.Add("bot", "raw-gateway-token-value")
	require.NoError(t, err)

	token, err := m.Token(id)
	require.NoError(t, err)
	assert.Equal(t, "raw-gateway-token-value", token)

	require.NoError(t, m.Deactivate(id))
	_, err = m.Token(id)
	assert.True(t, api.IsConfigError(err), "inactive credential must not yield a token")

	_, err = m.Token("missing")
	assert.True(t, api.IsNotFound(err))
}

func TestDeactivateUnknownCredential(t *testing.T) {
	m := testManager(t)
	err := m.Deactivate("nope")
	assert.True(t, api.IsNotFound(err))
}

func TestDisplayTokenShortTokensFullyMasked(t *testing.T) {
	assert.Equal(t, "****", DisplayToken("short"))
	assert.Equal(t, "****", DisplayToken("123456789012"))
	assert.Equal(t, "1234...3456", DisplayToken("1234567890123456"))
}
