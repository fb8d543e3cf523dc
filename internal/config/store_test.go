package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStorePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "menagerie.yaml")
}

func TestLoadCreatesDefaultDocument(t *testing.T) {
	path := testStorePath(t)
	store := NewStore(path)

	require.NoError(t, store.Load())

	_, err := os.Stat(path)
	require.NoError(t, err, "Load should persist the default document")

	doc := store.Snapshot()
	assert.Equal(t, "1", doc.Version)
	assert.Empty(t, doc.Credentials)
	assert.Empty(t, doc.Instances)
	assert.Len(t, doc.Templates, 4, "built-in templates should be seeded")

	tmpl, ok := doc.FindTemplate("pure-grug")
	require.True(t, ok)
	assert.Equal(t, "grug", tmpl.Personality)
	assert.True(t, tmpl.LoadEmbedder)
}

func TestLoadAppliesSettingsDefaults(t *testing.T) {
	path := testStorePath(t)
	require.NoError(t, os.WriteFile(path, []byte("version: \"1\"\nsettings:\n  dataDir: /srv/bots\n"), 0644))

	store := NewStore(path)
	require.NoError(t, store.Load())

	settings := store.Settings()
	assert.Equal(t, "/srv/bots", settings.DataDir)
	assert.Equal(t, defaultListenAddr, settings.ListenAddr)
	assert.Equal(t, defaultStopTimeout, settings.StopTimeout)
	assert.Equal(t, defaultStartStagger, settings.StartStagger)
}

func TestMutatePersistsChanges(t *testing.T) {
	path := testStorePath(t)
	store := NewStore(path)
	require.NoError(t, store.Load())

	err := store.Mutate(func(doc *Document) error {
		doc.Instances = append(doc.Instances, InstanceConfig{
			ID:         "inst-1",
			Name:       "grug-main",
			Template:   "pure-grug",
			Credential: "cred-1",
			AutoStart:  true,
			CreatedAt:  time.Now().UTC(),
		})
		return nil
	})
	require.NoError(t, err)

	// A fresh store reading the same file sees the mutation.
	reread := NewStore(path)
	require.NoError(t, reread.Load())
	inst, ok := reread.Snapshot().FindInstance("inst-1")
	require.True(t, ok)
	assert.Equal(t, "grug-main", inst.Name)
	assert.True(t, inst.AutoStart)
}

func TestMutateErrorLeavesDocumentUntouched(t *testing.T) {
	path := testStorePath(t)
	store := NewStore(path)
	require.NoError(t, store.Load())

	wantErr := assert.AnError
	err := store.Mutate(func(doc *Document) error {
		doc.Instances = append(doc.Instances, InstanceConfig{ID: "ghost"})
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	_, ok := store.Snapshot().FindInstance("ghost")
	assert.False(t, ok, "failed mutation must not leak into the document")
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	path := testStorePath(t)
	store := NewStore(path)
	require.NoError(t, store.Load())

	require.NoError(t, store.Mutate(func(doc *Document) error {
		doc.Templates[0].Settings = map[string]string{"key": "original"}
		return nil
	}))

	snap := store.Snapshot()
	snap.Templates[0].Settings["key"] = "mutated"
	snap.Templates[0].Name = "mutated"

	fresh := store.Snapshot()
	assert.Equal(t, "original", fresh.Templates[0].Settings["key"])
	assert.NotEqual(t, "mutated", fresh.Templates[0].Name)
}

func TestReloadIfChangedIgnoresOwnWrites(t *testing.T) {
	path := testStorePath(t)
	store := NewStore(path)
	require.NoError(t, store.Load())

	changed, err := store.ReloadIfChanged()
	require.NoError(t, err)
	assert.False(t, changed, "content written by this store must not count as a change")
}

func TestReloadIfChangedPicksUpExternalEdit(t *testing.T) {
	path := testStorePath(t)
	store := NewStore(path)
	require.NoError(t, store.Load())

	// Simulate an operator editing the file out-of-band.
	external := NewStore(path)
	require.NoError(t, external.Load())
	require.NoError(t, external.Mutate(func(doc *Document) error {
		doc.Settings.ListenAddr = "localhost:9999"
		return nil
	}))

	changed, err := store.ReloadIfChanged()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "localhost:9999", store.Settings().ListenAddr)
}

func TestReloadIfChangedKeepsPreviousOnParseError(t *testing.T) {
	path := testStorePath(t)
	store := NewStore(path)
	require.NoError(t, store.Load())

	require.NoError(t, os.WriteFile(path, []byte("{{not yaml"), 0644))

	_, err := store.ReloadIfChanged()
	assert.Error(t, err)
	assert.Equal(t, "1", store.Snapshot().Version, "previous document stays active")
}

func TestIdentityEquals(t *testing.T) {
	base := InstanceConfig{
		ID:          "inst-1",
		Name:        "grug-main",
		Template:    "pure-grug",
		Credential:  "cred-1",
		Personality: "grug",
	}

	renamed := base
	renamed.Name = "grug-renamed"
	renamed.AutoStart = true
	assert.True(t, base.IdentityEquals(renamed), "name and autoStart are not identity fields")

	swapped := base
	swapped.Credential = "cred-2"
	assert.False(t, base.IdentityEquals(swapped))

	retemplated := base
	retemplated.Template = "evolution"
	assert.False(t, base.IdentityEquals(retemplated))
}
