package manage

import (
	"context"
	"sort"
	"time"

	"github.com/plexhub/convault/internal/configfile"
	"github.com/plexhub/convault/internal/provider"
	"github.com/plexhub/convault/internal/store"
)

// Status classifies one secret id against the configuration.
type Status string

const (
	// StatusOK: record in store, reference in config.
	StatusOK Status = "ok"

	// StatusOrphan: record in store, nothing in config points to it.
	StatusOrphan Status = "orphan"

	// StatusMissing: config references an id absent from the store.
	StatusMissing Status = "missing"
)

// Binding is the derived relationship between a stored secret and the
// config entry referencing it. It is computed fresh on every call; the
// vault gets no notification when the outer tool edits the config.
type Binding struct {
	Ref         string
	SecretID    string
	ConnectorID string
	EnvKey      string
	Provider    provider.Type
	CreatedAt   time.Time
	Status      Status
}

// configRef is one secret reference found in the configuration.
type configRef struct {
	ref         string
	id          string
	providerTag provider.Type
	connectorID string
	envKey      string
}

func collectConfigRefs(doc *configfile.Document) []configRef {
	var refs []configRef
	for _, c := range doc.Connectors {
		if c.Transport == nil {
			continue
		}
		for key, value := range c.Transport.Env {
			tag, id, ok := store.ParseRef(value)
			if !ok {
				continue
			}
			refs = append(refs, configRef{
				ref:         value,
				id:          id,
				providerTag: tag,
				connectorID: c.ID,
				envKey:      key,
			})
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].connectorID != refs[j].connectorID {
			return refs[i].connectorID < refs[j].connectorID
		}
		return refs[i].envKey < refs[j].envKey
	})
	return refs
}

// ListBindings enumerates every store id and every secret reference in the
// configuration and classifies each as OK, ORPHAN or MISSING.
func (m *Manager) ListBindings(ctx context.Context) ([]Binding, error) {
	st, err := m.openStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()

	doc, err := configfile.Load(m.configPath)
	if err != nil {
		return nil, err
	}

	return m.classify(ctx, st, doc)
}

func (m *Manager) classify(ctx context.Context, st *store.Store, doc *configfile.Document) ([]Binding, error) {
	refs := collectConfigRefs(doc)
	refsByID := make(map[string][]configRef, len(refs))
	for _, r := range refs {
		refsByID[r.id] = append(refsByID[r.id], r)
	}

	ids, err := st.List(ctx)
	if err != nil {
		return nil, err
	}
	inStore := make(map[string]bool, len(ids))

	var bindings []Binding
	for _, id := range ids {
		inStore[id] = true

		tag, _, err := st.Provider(ctx, id)
		if err != nil {
			return nil, err
		}
		created, _, err := st.CreatedAt(ctx, id)
		if err != nil {
			return nil, err
		}

		bound := refsByID[id]
		if len(bound) == 0 {
			bindings = append(bindings, Binding{
				Ref:       store.FormatRef(tag, id),
				SecretID:  id,
				Provider:  tag,
				CreatedAt: created,
				Status:    StatusOrphan,
			})
			continue
		}
		for _, r := range bound {
			bindings = append(bindings, Binding{
				Ref:         r.ref,
				SecretID:    id,
				ConnectorID: r.connectorID,
				EnvKey:      r.envKey,
				Provider:    tag,
				CreatedAt:   created,
				Status:      StatusOK,
			})
		}
	}

	// References pointing at ids the store no longer holds.
	for _, r := range refs {
		if inStore[r.id] {
			continue
		}
		bindings = append(bindings, Binding{
			Ref:         r.ref,
			SecretID:    r.id,
			ConnectorID: r.connectorID,
			EnvKey:      r.envKey,
			Provider:    r.providerTag,
			Status:      StatusMissing,
		})
	}

	return bindings, nil
}
