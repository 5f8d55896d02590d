package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexhub/convault/internal/configfile"
	"github.com/plexhub/convault/internal/detect"
	cverrors "github.com/plexhub/convault/internal/errors"
	"github.com/plexhub/convault/internal/manage"
	"github.com/plexhub/convault/internal/secretize"
	"github.com/plexhub/convault/internal/store"
)

// NewSecretizeCommand rewrites one connector's environment, replacing
// detected credentials with secret references.
func NewSecretizeCommand(cfg *Config) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "secretize <connector-id>",
		Short: "Move a connector's credentials into the encrypted store",
		Long: `Scan a connector's transport.env for credential-shaped values, encrypt
them into the local secret store, and replace each one in the
configuration with an opaque "<provider>:<id>" reference.

Placeholder values (YOUR_API_KEY, <token>, xxxx...) are reported but
never stored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			connectorID := args[0]
			ctx := cmd.Context()

			if dryRun {
				doc, err := configfile.Load(cfg.ConfigPath)
				if err != nil {
					return err
				}
				connector := doc.Connector(connectorID)
				if connector == nil {
					return &manage.ConnectorNotFoundError{ID: connectorID}
				}

				var env map[string]string
				if connector.Transport != nil {
					env = connector.Transport.Env
				}
				n := detect.CountSecrets(env)
				for key, d := range detect.ScanEnv(env) {
					switch d.Action {
					case detect.ActionStore:
						fmt.Fprintf(cmd.OutOrStdout(), "would store  %s\n", key)
					case detect.ActionWarn:
						fmt.Fprintf(cmd.OutOrStdout(), "placeholder  %s\n", key)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d secret(s) would be stored\n", n)
				return nil
			}

			providers := cfg.Providers()
			st, err := store.Open(cfg.ConfigDir, providers, cfg.Logger)
			if err != nil {
				return err
			}
			defer st.Close()

			var summary *secretize.Summary
			err = configfile.WithLock(ctx, cfg.ConfigPath, func(doc *configfile.Document) error {
				connector := doc.Connector(connectorID)
				if connector == nil {
					return &manage.ConnectorNotFoundError{ID: connectorID}
				}

				s, err := secretize.Env(ctx, connector.EnsureEnv(), secretize.Options{
					ConfigDir:   cfg.ConfigDir,
					ConnectorID: connectorID,
					Store:       st,
					Logger:      cfg.Logger,
				})
				if err != nil {
					return err
				}
				summary = s
				connector.Transport.Env = s.Env
				return nil
			})
			if err != nil {
				return wrapLockError(err)
			}

			fmt.Fprint(cmd.OutOrStdout(),
				secretize.FormatOutput(summary.Results, connectorID, providers.Best().Type()))
			cfg.Logger.Info("%d stored, %d placeholder(s)", summary.StoredCount, summary.PlaceholderCount)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be stored without changing anything")
	return cmd
}

func wrapLockError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, configfile.ErrLockTimeout) {
		return cverrors.UserError{
			Message:    "Another process is holding the configuration lock",
			Suggestion: "Wait for it to finish, or remove a stale .lock file if no other process is running",
			Err:        err,
		}
	}
	return err
}
