package manage

import (
	"context"

	"github.com/plexhub/convault/internal/configfile"
	"github.com/plexhub/convault/internal/store"
)

// SetOptions targets one connector env key with a new secret value.
type SetOptions struct {
	ConnectorID string
	EnvKey      string
	Value       string
}

// SetResult reports the stored secret and whether an existing reference
// was overwritten.
type SetResult struct {
	Ref      string
	SecretID string
	Updated  bool
}

// SetSecret stores the value and binds it to the connector's env key. The
// secret is stored before the lock is taken: the store write is the slow
// part (it may hit the OS keychain) and must not extend the lock hold
// time. A crash after the store but before the bind leaves an orphan,
// which PruneOrphans recovers.
func (m *Manager) SetSecret(ctx context.Context, opts SetOptions) (*SetResult, error) {
	st, err := m.openStore()
	if err != nil {
		return nil, err
	}

	id, ref, err := st.Put(ctx, []byte(opts.Value), store.Meta{
		ConnectorID: opts.ConnectorID,
		KeyName:     opts.EnvKey,
		Source:      "set",
	})
	st.Close()
	if err != nil {
		return nil, err
	}

	result := &SetResult{Ref: ref, SecretID: id}
	err = configfile.WithLock(ctx, m.configPath, func(doc *configfile.Document) error {
		connector := doc.Connector(opts.ConnectorID)
		if connector == nil {
			return &ConnectorNotFoundError{ID: opts.ConnectorID}
		}

		env := connector.EnsureEnv()
		if existing, ok := env[opts.EnvKey]; ok && store.IsRef(existing) {
			result.Updated = true
		}
		env[opts.EnvKey] = ref
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
