package manage

import (
	"context"
	"time"

	"github.com/plexhub/convault/internal/configfile"
)

// PruneOptions controls orphan removal.
type PruneOptions struct {
	// DryRun reports what would be removed without deleting anything.
	DryRun bool

	// OlderThanDays, when positive, restricts pruning to orphans created
	// more than this many days ago.
	OlderThanDays int
}

// PruneResult reports the orphan set and what was actually removed.
type PruneResult struct {
	OrphanCount  int
	RemovedCount int
	RemovedIDs   []string
}

// PruneOrphans removes stored secrets no configuration entry points to.
// An orphan is only eligible when its recorded creation time is known and
// lies before now minus the age threshold; a record whose timestamp can't
// be read is retained.
func (m *Manager) PruneOrphans(ctx context.Context, opts PruneOptions) (*PruneResult, error) {
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

	cutoff := time.Time{}
	if opts.OlderThanDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -opts.OlderThanDays)
	}

	var eligible []string
	for _, b := range bindings {
		if b.Status != StatusOrphan {
			continue
		}
		if !cutoff.IsZero() {
			if b.CreatedAt.IsZero() || !b.CreatedAt.Before(cutoff) {
				continue
			}
		}
		eligible = append(eligible, b.SecretID)
	}

	result := &PruneResult{OrphanCount: len(eligible)}
	if opts.DryRun {
		return result, nil
	}

	for _, id := range eligible {
		removed, err := st.Delete(ctx, id)
		if err != nil {
			return nil, err
		}
		// A record already gone is fine; only count actual removals.
		if removed {
			result.RemovedCount++
			result.RemovedIDs = append(result.RemovedIDs, id)
		}
	}

	return result, nil
}
