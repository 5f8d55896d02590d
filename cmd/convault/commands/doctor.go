package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/plexhub/convault/internal/configfile"
	"github.com/plexhub/convault/internal/permissions"
	"github.com/plexhub/convault/internal/provider"
	"github.com/plexhub/convault/internal/store"
)

// NewDoctorCommand checks that the local secret machinery is usable.
func NewDoctorCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, providers and store health",
		Long: `Verify that the configuration file parses, report which encryption
providers are usable on this machine, and check the secret store file's
permissions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			problems := 0

			// Configuration
			doc, err := configfile.Load(cfg.ConfigPath)
			if err != nil {
				cfg.Logger.Error("configuration: %v", err)
				problems++
			} else {
				cfg.Logger.Info("configuration valid (%d connector(s))", len(doc.Connectors))
			}

			// Providers
			set := cfg.Providers()
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tSTATUS\tNOTES")
			for _, p := range []provider.Type{provider.TypeKeychain, provider.TypePlain} {
				pr, err := set.Get(p)
				switch {
				case err != nil:
					fmt.Fprintf(w, "%s\t✗ missing\t%v\n", p, err)
				case pr.Available():
					fmt.Fprintf(w, "%s\t✓ available\t%s\n", p, providerNote(p))
				default:
					fmt.Fprintf(w, "%s\t✗ unavailable\t%s\n", p, unavailableNote(p))
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}

			best := set.Best()
			if best.Type() == provider.TypePlain {
				cfg.Logger.Warn("best available provider is %s: stored secrets are reversible, not encrypted", provider.TypePlain)
			} else {
				cfg.Logger.Info("secrets are encrypted via the %s provider", best.Type())
			}

			// Store file
			dbPath := filepath.Join(cfg.ConfigDir, store.DBFileName)
			if _, err := os.Stat(dbPath); os.IsNotExist(err) {
				cfg.Logger.Info("no secret store yet (created on first use)")
			} else {
				findings, err := permissions.CheckSecretFile(dbPath)
				if err != nil {
					cfg.Logger.Error("store permissions: %v", err)
					problems++
				}
				for _, f := range findings {
					cfg.Logger.Warn("%s", f)
					problems++
				}
				if err == nil && len(findings) == 0 {
					cfg.Logger.Info("store permissions ok")
				}
			}

			if problems > 0 {
				return fmt.Errorf("%d problem(s) found", problems)
			}
			cfg.Logger.Info("everything looks healthy")
			return nil
		},
	}
}

func providerNote(t provider.Type) string {
	switch t {
	case provider.TypeKeychain:
		return "OS keychain holds the master key"
	case provider.TypePlain:
		return "reversible base64 fallback"
	default:
		return ""
	}
}

func unavailableNote(t provider.Type) string {
	if t == provider.TypeKeychain {
		return "no usable OS keychain in this session"
	}
	return ""
}
