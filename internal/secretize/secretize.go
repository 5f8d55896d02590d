// Package secretize rewrites a connector's environment map, replacing
// detected credentials with opaque secret references. Entries are processed
// sequentially; a storage failure on one entry never aborts the batch.
package secretize

import (
	"context"
	"fmt"
	"sort"

	"github.com/plexhub/convault/internal/detect"
	"github.com/plexhub/convault/internal/logging"
	"github.com/plexhub/convault/internal/provider"
	"github.com/plexhub/convault/internal/store"
)

// ResultKind says what happened to one env entry.
type ResultKind string

const (
	// Stored means the value was encrypted and replaced with a reference.
	Stored ResultKind = "stored"

	// Placeholder means the key is sensitive but nothing was stored: the
	// value was an unfilled placeholder, or storage failed and the entry
	// needs manual attention.
	Placeholder ResultKind = "placeholder"

	// Skipped means the key is not sensitive.
	Skipped ResultKind = "skipped"
)

// Result records the outcome for one env key.
type Result struct {
	Key    string
	Kind   ResultKind
	Ref    string // set when Kind == Stored
	Detail string // human hint for placeholder results
}

// Options configures one secretize run.
type Options struct {
	ConfigDir   string
	ConnectorID string

	// Store, when non-nil, is a shared already-open store; the caller
	// owns its lifecycle. When nil a store is opened for this run and
	// closed on every exit path.
	Store *store.Store

	Logger *logging.Logger
}

// Summary is the outcome of a secretize run.
type Summary struct {
	Env              map[string]string
	Results          []Result
	StoredCount      int
	PlaceholderCount int
}

// Env classifies and rewrites every entry of env. The input map is not
// mutated; the rewritten map is returned in the summary.
func Env(ctx context.Context, env map[string]string, opts Options) (*Summary, error) {
	st := opts.Store
	if st == nil {
		opened, err := store.Open(opts.ConfigDir, provider.NewSet(opts.ConfigDir), opts.Logger)
		if err != nil {
			return nil, fmt.Errorf("open secret store: %w", err)
		}
		defer opened.Close()
		st = opened
	}

	out := make(map[string]string, len(env))
	summary := &Summary{Env: out}

	for _, key := range sortedKeys(env) {
		value := env[key]
		d := detect.Detect(key, value)

		switch d.Action {
		case detect.ActionStore:
			_, ref, err := st.Put(ctx, []byte(value), store.Meta{
				ConnectorID: opts.ConnectorID,
				KeyName:     key,
				Source:      "secretize",
			})
			if err != nil {
				// Keep the batch going: the original value stays in
				// place and the entry is downgraded to a visible
				// warning.
				opts.Logger.Warn("could not store %s: %v", key, err)
				out[key] = value
				summary.Results = append(summary.Results, Result{
					Key:    key,
					Kind:   Placeholder,
					Detail: "storage failed, value left in config",
				})
				summary.PlaceholderCount++
				continue
			}
			out[key] = ref
			summary.Results = append(summary.Results, Result{Key: key, Kind: Stored, Ref: ref})
			summary.StoredCount++

		case detect.ActionWarn:
			out[key] = value
			summary.Results = append(summary.Results, Result{
				Key:    key,
				Kind:   Placeholder,
				Detail: "placeholder value, fill in a real credential first",
			})
			summary.PlaceholderCount++

		default:
			out[key] = value
			summary.Results = append(summary.Results, Result{Key: key, Kind: Skipped})
		}
	}

	return summary, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
