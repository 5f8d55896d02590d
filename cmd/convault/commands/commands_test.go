package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexhub/convault/internal/logging"
	"github.com/plexhub/convault/internal/store"
)

const testConfig = `{
  "connectors": [
    {"id": "github", "transport": {"type": "stdio", "env": {"GITHUB_TOKEN": "ghp_abc123XYZ", "LOG_LEVEL": "info"}}}
  ]
}`

// testEnv holds a command runtime pointed at a temp config directory. The
// logger writes into log so tests can assert on user-facing messages.
type testEnv struct {
	cfg *Config
	log *bytes.Buffer
}

func newTestEnv(t *testing.T, configJSON string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "connectors.json")
	require.NoError(t, os.WriteFile(configPath, []byte(configJSON), 0o600))

	log := &bytes.Buffer{}
	return &testEnv{
		cfg: &Config{
			ConfigDir:      dir,
			ConfigPath:     configPath,
			Logger:         logging.NewWithWriter(log, false, true),
			NonInteractive: true,
		},
		log: log,
	}
}

func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSecretsListEmpty(t *testing.T) {
	env := newTestEnv(t, testConfig)

	_, err := runCommand(t, NewSecretsCommand(env.cfg), "list")
	require.NoError(t, err)
	assert.Contains(t, env.log.String(), "no secrets stored")
}

func TestSecretsSetThenList(t *testing.T) {
	env := newTestEnv(t, testConfig)

	_, err := runCommand(t, NewSecretsCommand(env.cfg),
		"set", "github", "API_TOKEN", "--value", "sk-live-0123456789abcdef")
	require.NoError(t, err)
	assert.Contains(t, env.log.String(), "bound github/API_TOKEN")

	data, err := os.ReadFile(env.cfg.ConfigPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-live-0123456789abcdef")

	out, err := runCommand(t, NewSecretsCommand(env.cfg), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "OK")
	assert.Contains(t, out, "github")
	assert.Contains(t, out, "API_TOKEN")
}

func TestSecretsSetUnknownConnector(t *testing.T) {
	env := newTestEnv(t, testConfig)

	_, err := runCommand(t, NewSecretsCommand(env.cfg),
		"set", "missing", "KEY", "--value", "value-1234567890")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestSecretsSetNonInteractiveRequiresValue(t *testing.T) {
	env := newTestEnv(t, testConfig)

	_, err := runCommand(t, NewSecretsCommand(env.cfg), "set", "github", "KEY")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No secret value")
}

func TestSecretsPruneDryRun(t *testing.T) {
	env := newTestEnv(t, testConfig)

	// An unbound secret is an orphan.
	s, err := store.Open(env.cfg.ConfigDir, env.cfg.Providers(), env.cfg.Logger)
	require.NoError(t, err)
	_, _, err = s.Put(context.Background(), []byte("orphaned-value"), store.Meta{Source: "test"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = runCommand(t, NewSecretsCommand(env.cfg), "prune", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, env.log.String(), "1 orphan(s) would be removed")

	// Dry run deletes nothing.
	s, err = store.Open(env.cfg.ConfigDir, env.cfg.Providers(), env.cfg.Logger)
	require.NoError(t, err)
	defer s.Close()
	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSecretsExportImportRoundTrip(t *testing.T) {
	env := newTestEnv(t, testConfig)
	bundlePath := filepath.Join(env.cfg.ConfigDir, "out.bundle")
	passFile := filepath.Join(env.cfg.ConfigDir, "pass.txt")
	require.NoError(t, os.WriteFile(passFile, []byte("correct horse battery\n"), 0o600))

	_, err := runCommand(t, NewSecretsCommand(env.cfg),
		"set", "github", "API_TOKEN", "--value", "sk-live-0123456789abcdef")
	require.NoError(t, err)

	_, err = runCommand(t, NewSecretsCommand(env.cfg),
		"export", "-o", bundlePath, "--passphrase-file", passFile)
	require.NoError(t, err)
	assert.Contains(t, env.log.String(), "exported 1 secret(s)")

	// Import into a fresh directory with the same connector layout.
	target := newTestEnv(t, testConfig)
	_, err = runCommand(t, NewSecretsCommand(target.cfg),
		"import", "-i", bundlePath, "--passphrase-file", passFile)
	require.NoError(t, err)
	assert.Contains(t, target.log.String(), "imported 1")
}

func TestSecretsExportNonInteractiveRequiresPassphrase(t *testing.T) {
	env := newTestEnv(t, testConfig)

	_, err := runCommand(t, NewSecretsCommand(env.cfg), "export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No passphrase given")
}

func TestSecretizeDryRun(t *testing.T) {
	env := newTestEnv(t, testConfig)

	out, err := runCommand(t, NewSecretizeCommand(env.cfg), "github", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "GITHUB_TOKEN")

	// Dry run leaves the configuration untouched.
	data, err := os.ReadFile(env.cfg.ConfigPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ghp_abc123XYZ")
}

func TestSecretizeStoresAndRewrites(t *testing.T) {
	env := newTestEnv(t, testConfig)

	_, err := runCommand(t, NewSecretizeCommand(env.cfg), "github")
	require.NoError(t, err)

	data, err := os.ReadFile(env.cfg.ConfigPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ghp_abc123XYZ")
	// Non-sensitive entries survive in place.
	assert.Contains(t, string(data), "info")
}

func TestDoctorReportsProviders(t *testing.T) {
	env := newTestEnv(t, testConfig)

	out, err := runCommand(t, NewDoctorCommand(env.cfg))
	require.NoError(t, err)
	assert.Contains(t, out, "PROVIDER")
	assert.Contains(t, out, "plain")
	assert.Contains(t, env.log.String(), "configuration valid")
}

func TestDoctorRejectsInvalidConfig(t *testing.T) {
	env := newTestEnv(t, `{"connectors": [{"transport": {"type": "stdio"}}]}`)

	_, err := runCommand(t, NewDoctorCommand(env.cfg))
	require.Error(t, err)
}

func TestReadPassphraseTrimsTrailingNewline(t *testing.T) {
	env := newTestEnv(t, testConfig)
	passFile := filepath.Join(env.cfg.ConfigDir, "pass.txt")
	require.NoError(t, os.WriteFile(passFile, []byte("hunter2\r\n"), 0o600))

	cmd := &cobra.Command{}
	got, err := readPassphrase(cmd, env.cfg, passFile, false)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)
}

func TestPromptLineReadsFromStdin(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("typed value\n"))

	got, err := promptLine(cmd, "? ")
	require.NoError(t, err)
	assert.Equal(t, "typed value", got)
}
