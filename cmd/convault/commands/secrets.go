package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	cverrors "github.com/plexhub/convault/internal/errors"
	"github.com/plexhub/convault/internal/logging"
	"github.com/plexhub/convault/internal/manage"
	"github.com/plexhub/convault/internal/provider"
)

// NewSecretsCommand groups the secret management subcommands.
func NewSecretsCommand(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage stored secrets and their bindings",
		Long: `List, set, prune, export and import secrets in the local encrypted store.

A binding is the association between a stored secret and the connector
env key whose configuration entry references it. Bindings are derived by
re-reading the configuration; secrets nothing points to are orphans.`,
	}

	cmd.AddCommand(
		newSecretsListCommand(cfg),
		newSecretsSetCommand(cfg),
		newSecretsPruneCommand(cfg),
		newSecretsExportCommand(cfg),
		newSecretsImportCommand(cfg),
	)
	return cmd
}

func newSecretsListCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List secrets and their binding status",
		RunE: func(cmd *cobra.Command, args []string) error {
			bindings, err := cfg.Manager().ListBindings(cmd.Context())
			if err != nil {
				return err
			}
			if len(bindings) == 0 {
				cfg.Logger.Info("no secrets stored")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STATUS\tCONNECTOR\tENV KEY\tPROVIDER\tCREATED\tID")
			for _, b := range bindings {
				created := ""
				if !b.CreatedAt.IsZero() {
					created = b.CreatedAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					strings.ToUpper(string(b.Status)), b.ConnectorID, b.EnvKey,
					b.Provider, created, b.SecretID)
			}
			return w.Flush()
		},
	}
}

func newSecretsSetCommand(cfg *Config) *cobra.Command {
	var value string

	cmd := &cobra.Command{
		Use:   "set <connector-id> <env-key>",
		Short: "Store a secret and bind it to a connector env key",
		Long: `Store a new secret value and write its reference into the connector's
transport.env. The value is read from --value, the CONVAULT_SECRET_VALUE
environment variable, or interactively from stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := value
			if v == "" {
				v = os.Getenv("CONVAULT_SECRET_VALUE")
			}
			if v == "" {
				if cfg.NonInteractive {
					return cverrors.UserError{
						Message:    "No secret value given",
						Suggestion: "Pass --value or set CONVAULT_SECRET_VALUE",
					}
				}
				read, err := promptLine(cmd, "Secret value: ")
				if err != nil {
					return err
				}
				v = read
			}

			result, err := cfg.Manager().SetSecret(cmd.Context(), manage.SetOptions{
				ConnectorID: args[0],
				EnvKey:      args[1],
				Value:       v,
			})
			if err != nil {
				return wrapLockError(err)
			}

			if result.Updated {
				cfg.Logger.Info("updated %s/%s → %s", args[0], args[1], result.Ref)
			} else {
				cfg.Logger.Info("bound %s/%s → %s", args[0], args[1], result.Ref)
			}
			cfg.Logger.Debug("stored value %s", logging.Secret(v))
			warnIfPlain(cfg)
			return nil
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "Secret value (prefer CONVAULT_SECRET_VALUE or the prompt; argv is visible in process listings)")
	return cmd
}

func newSecretsPruneCommand(cfg *Config) *cobra.Command {
	var (
		dryRun    bool
		olderThan int
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete stored secrets no configuration entry references",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := cfg.Manager().PruneOrphans(cmd.Context(), manage.PruneOptions{
				DryRun:        dryRun,
				OlderThanDays: olderThan,
			})
			if err != nil {
				return err
			}

			if dryRun {
				cfg.Logger.Info("%d orphan(s) would be removed", result.OrphanCount)
				return nil
			}
			cfg.Logger.Info("removed %d of %d orphan(s)", result.RemovedCount, result.OrphanCount)
			for _, id := range result.RemovedIDs {
				cfg.Logger.Debug("removed %s", id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report orphans without deleting")
	cmd.Flags().IntVar(&olderThan, "older-than", 0, "Only prune orphans older than this many days")
	return cmd
}

func newSecretsExportCommand(cfg *Config) *cobra.Command {
	var (
		output         string
		passphraseFile string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export bound secrets as a passphrase-protected bundle",
		Long: `Collect every secret with a live configuration binding, encrypt the set
under a passphrase-derived key, and write it to a bundle file for
transfer to another machine. Orphan secrets are not exported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			passphrase, err := readPassphrase(cmd, cfg, passphraseFile, true)
			if err != nil {
				return err
			}

			result, err := cfg.Manager().Export(cmd.Context(), manage.ExportOptions{
				OutputPath: output,
				Passphrase: passphrase,
			})
			if err != nil {
				return err
			}

			cfg.Logger.Info("exported %d secret(s) to %s", result.ExportedCount, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "convault-secrets.bundle", "Bundle output path")
	cmd.Flags().StringVar(&passphraseFile, "passphrase-file", "", "File containing the bundle passphrase")
	return cmd
}

func newSecretsImportCommand(cfg *Config) *cobra.Command {
	var (
		input          string
		passphraseFile string
		overwrite      bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import secrets from a bundle into this machine's store",
		RunE: func(cmd *cobra.Command, args []string) error {
			passphrase, err := readPassphrase(cmd, cfg, passphraseFile, false)
			if err != nil {
				return err
			}

			result, err := cfg.Manager().Import(cmd.Context(), manage.ImportOptions{
				InputPath:  input,
				Passphrase: passphrase,
				Overwrite:  overwrite,
			})
			if err != nil {
				return wrapLockError(err)
			}

			cfg.Logger.Info("imported %d, skipped %d, errors %d",
				result.ImportedCount, result.SkippedCount, result.ErrorCount)
			warnIfPlain(cfg)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "convault-secrets.bundle", "Bundle input path")
	cmd.Flags().StringVar(&passphraseFile, "passphrase-file", "", "File containing the bundle passphrase")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace env keys that already hold a secret reference")
	return cmd
}

// readPassphrase resolves the bundle passphrase from the passphrase file,
// the CONVAULT_PASSPHRASE environment variable, or an interactive prompt.
func readPassphrase(cmd *cobra.Command, cfg *Config, passphraseFile string, confirm bool) (string, error) {
	if passphraseFile != "" {
		data, err := os.ReadFile(passphraseFile)
		if err != nil {
			return "", fmt.Errorf("read passphrase file: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}

	if env := os.Getenv("CONVAULT_PASSPHRASE"); env != "" {
		return env, nil
	}

	if cfg.NonInteractive {
		return "", cverrors.UserError{
			Message:    "No passphrase given",
			Suggestion: "Pass --passphrase-file or set CONVAULT_PASSPHRASE",
		}
	}

	passphrase, err := promptLine(cmd, "Bundle passphrase: ")
	if err != nil {
		return "", err
	}
	if passphrase == "" {
		return "", cverrors.UserError{Message: "Passphrase must not be empty"}
	}
	if confirm {
		again, err := promptLine(cmd, "Confirm passphrase: ")
		if err != nil {
			return "", err
		}
		if passphrase != again {
			return "", cverrors.UserError{Message: "Passphrases do not match"}
		}
	}
	return passphrase, nil
}

func promptLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// warnIfPlain surfaces the reversible-encoding downgrade after any
// operation that may have written new records.
func warnIfPlain(cfg *Config) {
	if cfg.Providers().Best().Type() == provider.TypePlain {
		cfg.Logger.Warn("no OS keychain available: secrets are stored with reversible encoding, not encryption")
	}
}
