package configfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cverrors "github.com/plexhub/convault/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "connectors.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const sampleConfig = `{
  "connectors": [
    {
      "id": "github",
      "transport": {
        "type": "stdio",
        "command": "github-connector",
        "env": {"GITHUB_TOKEN": "ghp_abc", "LOG_LEVEL": "info"}
      }
    },
    {"id": "bare"}
  ]
}`

func TestLoadAndLookup(t *testing.T) {
	doc, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	require.Len(t, doc.Connectors, 2)

	gh := doc.Connector("github")
	require.NotNil(t, gh)
	assert.Equal(t, "ghp_abc", gh.Transport.Env["GITHUB_TOKEN"])

	assert.Nil(t, doc.Connector("missing"))
}

func TestLoadMissingFileYieldsEmptyDocument(t *testing.T) {
	doc, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, doc.Connectors)
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"connector without id", `{"connectors": [{"transport": {}}]}`},
		{"env with non-string value", `{"connectors": [{"id": "a", "transport": {"env": {"K": 1}}}]}`},
		{"connectors not array", `{"connectors": {}}`},
		{"missing connectors", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)

			var cfgErr cverrors.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	doc, err := Load(path)
	require.NoError(t, err)

	doc.Connector("github").EnsureEnv()["GITHUB_TOKEN"] = "keychain:3b126b07-52ef-4ab0-8b6e-111111111111"
	require.NoError(t, Save(path, doc))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "keychain:3b126b07-52ef-4ab0-8b6e-111111111111",
		reloaded.Connector("github").Transport.Env["GITHUB_TOKEN"])
	// Untouched entries survive the rewrite.
	assert.Equal(t, "info", reloaded.Connector("github").Transport.Env["LOG_LEVEL"])
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	doc, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Save(path, doc))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSavePreservesFileMode(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	require.NoError(t, os.Chmod(path, 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Save(path, doc))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestEnsureEnvBuildsTransport(t *testing.T) {
	c := &Connector{ID: "bare"}
	env := c.EnsureEnv()
	env["KEY"] = "value"

	require.NotNil(t, c.Transport)
	assert.Equal(t, "value", c.Transport.Env["KEY"])
}

func TestLockExcludes(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	ctx := context.Background()

	lock, err := Acquire(ctx, path)
	require.NoError(t, err)

	// Second acquisition must time out while the first holder lives.
	_, err = acquire(ctx, path, 300*time.Millisecond, 50*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, lock.Release())

	lock2, err := Acquire(ctx, path)
	require.NoError(t, err)
	require.NoError(t, lock2.Release())
}

func TestLockReleaseTolerant(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	lock, err := Acquire(context.Background(), path)
	require.NoError(t, err)

	// External sweep removed the sentinel already.
	require.NoError(t, os.Remove(LockPath(path)))
	assert.NoError(t, lock.Release())
}

func TestLockHonorsContext(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	lock, err := Acquire(context.Background(), path)
	require.NoError(t, err)
	defer lock.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err = acquire(ctx, path, time.Minute, 50*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithLockPersistsOnSuccess(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	err := WithLock(context.Background(), path, func(doc *Document) error {
		doc.Connector("github").EnsureEnv()["NEW_KEY"] = "v"
		return nil
	})
	require.NoError(t, err)

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "v", doc.Connector("github").Transport.Env["NEW_KEY"])

	// Lock released.
	_, err = os.Stat(LockPath(path))
	assert.True(t, os.IsNotExist(err))
}

func TestWithLockDiscardsOnError(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	boom := errors.New("boom")

	err := WithLock(context.Background(), path, func(doc *Document) error {
		doc.Connector("github").EnsureEnv()["NEW_KEY"] = "v"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	doc, err := Load(path)
	require.NoError(t, err)
	assert.NotContains(t, doc.Connector("github").Transport.Env, "NEW_KEY")

	// Lock released even on the error path.
	_, err = os.Stat(LockPath(path))
	assert.True(t, os.IsNotExist(err))
}

func TestSequentialWithLockNoLostUpdate(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	ctx := context.Background()

	require.NoError(t, WithLock(ctx, path, func(doc *Document) error {
		doc.Connector("github").EnsureEnv()["FIRST"] = "1"
		return nil
	}))
	require.NoError(t, WithLock(ctx, path, func(doc *Document) error {
		doc.Connector("github").EnsureEnv()["SECOND"] = "2"
		return nil
	}))

	doc, err := Load(path)
	require.NoError(t, err)
	env := doc.Connector("github").Transport.Env
	assert.Equal(t, "1", env["FIRST"])
	assert.Equal(t, "2", env["SECOND"])
}
