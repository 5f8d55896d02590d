// Package manage implements the vault's management operations: binding
// reconciliation, direct secret assignment, orphan pruning, and the
// passphrase-protected export/import of bound secrets. Configuration
// rewrites happen under the sentinel config lock; secrets are always
// stored before the configuration reference is written, so a crash leaves
// at worst a recoverable orphan, never a dangling reference.
package manage

import (
	"errors"
	"fmt"

	"github.com/plexhub/convault/internal/logging"
	"github.com/plexhub/convault/internal/provider"
	"github.com/plexhub/convault/internal/store"
)

// ErrConnectorNotFound means an operation targeted a connector id the
// configuration doesn't contain.
var ErrConnectorNotFound = errors.New("connector not found")

// ConnectorNotFoundError carries the missing connector id.
type ConnectorNotFoundError struct {
	ID string
}

func (e *ConnectorNotFoundError) Error() string {
	return fmt.Sprintf("connector %q not found in configuration", e.ID)
}

func (e *ConnectorNotFoundError) Unwrap() error {
	return ErrConnectorNotFound
}

// Manager executes management operations against one configuration
// directory and its connectors document. Construct it at the composition
// root and inject it; it holds no global state.
type Manager struct {
	configDir  string
	configPath string
	providers  *provider.Set
	logger     *logging.Logger
}

// New creates a manager for the store under configDir and the connectors
// document at configPath.
func New(configDir, configPath string, providers *provider.Set, logger *logging.Logger) *Manager {
	return &Manager{
		configDir:  configDir,
		configPath: configPath,
		providers:  providers,
		logger:     logger,
	}
}

func (m *Manager) openStore() (*store.Store, error) {
	return store.Open(m.configDir, m.providers, m.logger)
}
