package manage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/plexhub/convault/internal/configfile"
	"github.com/plexhub/convault/internal/permissions"
)

// ExportOptions controls a bundle export.
type ExportOptions struct {
	OutputPath string
	Passphrase string
}

// ExportResult reports how many bound secrets went into the bundle.
type ExportResult struct {
	ExportedCount int
}

// Export writes a passphrase-protected bundle of every secret with a live
// configuration binding. Orphans are excluded: a secret nothing points to
// is not portable, there is nowhere to rebind it on the target machine.
func (m *Manager) Export(ctx context.Context, opts ExportOptions) (*ExportResult, error) {
	st, err := m.openStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()

	doc, err := configfile.Load(m.configPath)
	if err != nil {
		return nil, err
	}

	bindings, err := m.classify(ctx, st, doc)
	if err != nil {
		return nil, err
	}

	var entries []ExportEntry
	for _, b := range bindings {
		if b.Status != StatusOK {
			continue
		}
		plaintext, err := st.Get(ctx, b.SecretID)
		if err != nil {
			return nil, fmt.Errorf("read secret for %s/%s: %w", b.ConnectorID, b.EnvKey, err)
		}
		if plaintext == nil {
			continue
		}
		entries = append(entries, ExportEntry{
			ConnectorID: b.ConnectorID,
			EnvKey:      b.EnvKey,
			Value:       base64.StdEncoding.EncodeToString(plaintext),
		})
	}

	bundle, err := sealBundle(opts.Passphrase, entries)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}
	if err := os.WriteFile(opts.OutputPath, append(data, '\n'), 0o600); err != nil {
		return nil, fmt.Errorf("write bundle: %w", err)
	}
	if err := permissions.Tighten(opts.OutputPath); err != nil {
		m.logger.Warn("could not restrict bundle permissions: %v", err)
	}

	return &ExportResult{ExportedCount: len(entries)}, nil
}
