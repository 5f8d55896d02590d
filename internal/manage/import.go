package manage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/plexhub/convault/internal/configfile"
	"github.com/plexhub/convault/internal/store"
)

// ImportOptions controls a bundle import.
type ImportOptions struct {
	InputPath  string
	Passphrase string

	// Overwrite replaces env keys that already hold a valid secret
	// reference; without it such entries are skipped.
	Overwrite bool
}

// ImportResult reports per-entry outcomes. Imports are never
// all-or-nothing past the integrity check: individual failures are
// counted and the batch continues.
type ImportResult struct {
	ImportedCount int
	SkippedCount  int
	ErrorCount    int
}

type storedEntry struct {
	entry ExportEntry
	ref   string
}

// Import reads a bundle, verifies its metadata HMAC before any decryption,
// stores each entry under a fresh id, and then binds the new references in
// the target configuration under the config lock. Secrets are stored
// before any config write; if nothing was stored the configuration is
// never touched.
func (m *Manager) Import(ctx context.Context, opts ImportOptions) (*ImportResult, error) {
	data, err := os.ReadFile(opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}

	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("parse bundle: %w", err)
	}

	entries, err := openBundle(opts.Passphrase, &bundle)
	if err != nil {
		return nil, err
	}

	st, err := m.openStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()

	result := &ImportResult{}
	var stored []storedEntry
	for _, entry := range entries {
		plaintext, err := base64.StdEncoding.DecodeString(entry.Value)
		if err != nil {
			m.logger.Warn("skipping %s/%s: undecodable value", entry.ConnectorID, entry.EnvKey)
			result.ErrorCount++
			continue
		}

		_, ref, err := st.Put(ctx, plaintext, store.Meta{
			ConnectorID: entry.ConnectorID,
			KeyName:     entry.EnvKey,
			Source:      "import",
		})
		if err != nil {
			m.logger.Warn("could not store %s/%s: %v", entry.ConnectorID, entry.EnvKey, err)
			result.ErrorCount++
			continue
		}
		stored = append(stored, storedEntry{entry: entry, ref: ref})
		result.ImportedCount++
	}

	if len(stored) == 0 {
		return result, nil
	}

	err = configfile.WithLock(ctx, m.configPath, func(doc *configfile.Document) error {
		for _, se := range stored {
			connector := doc.Connector(se.entry.ConnectorID)
			if connector == nil {
				m.logger.Warn("connector %s not in target config, secret left unbound",
					se.entry.ConnectorID)
				result.SkippedCount++
				continue
			}

			env := connector.EnsureEnv()
			if existing, ok := env[se.entry.EnvKey]; ok && store.IsRef(existing) && !opts.Overwrite {
				m.logger.Debug("keeping existing reference for %s/%s",
					se.entry.ConnectorID, se.entry.EnvKey)
				result.SkippedCount++
				continue
			}
			env[se.entry.EnvKey] = se.ref
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
