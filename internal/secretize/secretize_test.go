package secretize_test

import (
	"context"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexhub/convault/internal/logging"
	"github.com/plexhub/convault/internal/provider"
	"github.com/plexhub/convault/internal/secretize"
	"github.com/plexhub/convault/internal/store"
)

func testLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, false, true)
}

func openTestStore(t *testing.T, dir string) *store.Store {
	t.Helper()
	s, err := store.Open(dir, provider.NewSetWith(provider.NewPlain()), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnvStoresDetectedSecret(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)

	env := map[string]string{
		"API_KEY": "sk-" + strings.Repeat("x1Y", 10),
		"OTHER":   "plain",
	}

	summary, err := secretize.Env(context.Background(), env, secretize.Options{
		ConfigDir:   dir,
		ConnectorID: "github",
		Store:       s,
		Logger:      testLogger(),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.StoredCount)
	assert.Equal(t, 0, summary.PlaceholderCount)
	assert.Regexp(t, regexp.MustCompile(`^plain:[0-9a-f-]+$`), summary.Env["API_KEY"])
	assert.Equal(t, "plain", summary.Env["OTHER"])
	// Input map untouched.
	assert.Equal(t, "sk-"+strings.Repeat("x1Y", 10), env["API_KEY"])

	// The stored reference resolves back to the original plaintext.
	_, id, ok := store.ParseRef(summary.Env["API_KEY"])
	require.True(t, ok)
	plaintext, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, env["API_KEY"], string(plaintext))

	meta, ok2, err := s.GetMeta(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok2)
	assert.Equal(t, "github", meta.ConnectorID)
	assert.Equal(t, "API_KEY", meta.KeyName)
	assert.Equal(t, "secretize", meta.Source)
}

func TestEnvPlaceholderWarned(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)

	summary, err := secretize.Env(context.Background(),
		map[string]string{"API_KEY": "YOUR_API_KEY"},
		secretize.Options{ConfigDir: dir, ConnectorID: "c", Store: s, Logger: testLogger()})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.StoredCount)
	assert.Equal(t, 1, summary.PlaceholderCount)
	assert.Equal(t, "YOUR_API_KEY", summary.Env["API_KEY"])

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEnvStorageFailureDowngrades(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)
	require.NoError(t, s.Close()) // every Put now fails

	summary, err := secretize.Env(context.Background(),
		map[string]string{
			"API_KEY": "real-Secret-Value-123456",
			"PATH":    "/usr/bin",
		},
		secretize.Options{ConfigDir: dir, ConnectorID: "c", Store: s, Logger: testLogger()})
	require.NoError(t, err)

	// The batch continued; the failed entry kept its value and became a
	// visible placeholder warning.
	assert.Equal(t, 0, summary.StoredCount)
	assert.Equal(t, 1, summary.PlaceholderCount)
	assert.Equal(t, "real-Secret-Value-123456", summary.Env["API_KEY"])
	assert.Equal(t, "/usr/bin", summary.Env["PATH"])
}

func TestEnvOpensOwnStoreWhenNoneShared(t *testing.T) {
	dir := t.TempDir()

	summary, err := secretize.Env(context.Background(),
		map[string]string{"TOKEN": "tok-Value-0123456789abcdef"},
		secretize.Options{ConfigDir: dir, ConnectorID: "c", Logger: testLogger()})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.StoredCount)

	// The run's store was closed; a fresh handle sees the record.
	s := openTestStore(t, dir)
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFormatOutput(t *testing.T) {
	results := []secretize.Result{
		{Key: "API_KEY", Kind: secretize.Stored, Ref: "keychain:3b126b07-52ef-4ab0-8b6e-111111111111"},
		{Key: "TOKEN", Kind: secretize.Placeholder, Detail: "placeholder value, fill in a real credential first"},
		{Key: "PATH", Kind: secretize.Skipped},
	}

	out := secretize.FormatOutput(results, "github", provider.TypeKeychain)
	assert.Contains(t, out, "Connector github:")
	assert.Contains(t, out, "API_KEY")
	assert.Contains(t, out, "keychain:3b126b07")
	assert.Contains(t, out, "TOKEN")
	assert.NotContains(t, out, "PATH")
	assert.NotContains(t, out, "WARNING")
}

func TestFormatOutputPlainProviderWarns(t *testing.T) {
	results := []secretize.Result{
		{Key: "API_KEY", Kind: secretize.Stored, Ref: "plain:3b126b07-52ef-4ab0-8b6e-111111111111"},
	}

	out := secretize.FormatOutput(results, "github", provider.TypePlain)
	assert.Contains(t, out, "WARNING")
	assert.Contains(t, out, "reversible")
}

func TestFormatOutputNoStoredNoWarning(t *testing.T) {
	results := []secretize.Result{
		{Key: "TOKEN", Kind: secretize.Placeholder, Detail: "placeholder value"},
	}

	out := secretize.FormatOutput(results, "c", provider.TypePlain)
	assert.NotContains(t, out, "WARNING")
}
