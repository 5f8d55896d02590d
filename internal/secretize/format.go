package secretize

import (
	"fmt"
	"strings"

	"github.com/plexhub/convault/internal/provider"
)

// FormatOutput renders the per-entry results for one connector as
// human-readable lines. Skipped entries are omitted. When any secret was
// stored under the reversible-encoding provider, an explicit warning is
// prepended: plain encoding is not encryption and the user must know.
func FormatOutput(results []Result, connectorID string, providerType provider.Type) string {
	var b strings.Builder

	storedAny := false
	for _, r := range results {
		if r.Kind == Stored {
			storedAny = true
			break
		}
	}

	if storedAny && providerType == provider.TypePlain {
		b.WriteString("⚠ WARNING: no OS keychain available; secrets were stored with reversible\n")
		b.WriteString("  encoding only. Anyone with access to the store file can read them.\n\n")
	}

	fmt.Fprintf(&b, "Connector %s:\n", connectorID)
	for _, r := range results {
		switch r.Kind {
		case Stored:
			fmt.Fprintf(&b, "  stored      %s → %s\n", r.Key, r.Ref)
		case Placeholder:
			fmt.Fprintf(&b, "  placeholder %s (%s)\n", r.Key, r.Detail)
		}
	}

	return b.String()
}
