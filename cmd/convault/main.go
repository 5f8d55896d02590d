package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/plexhub/convault/cmd/convault/commands"
	"github.com/plexhub/convault/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Sweep every memguard enclave before the process exits.
	defer memguard.Purge()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		memguard.Purge()
		os.Exit(1)
	}
}

func run() error {
	var (
		configDir      string
		configFile     string
		noColor        bool
		debug          bool
		nonInteractive bool
	)

	cfg := &commands.Config{}

	rootCmd := &cobra.Command{
		Use:   "convault",
		Short: "Local secrets vault for connector configurations",
		Long: `convault detects credentials in connector environment maps, stores them
encrypted at rest, and replaces them in the configuration with opaque
references. Bound secrets can be moved between machines as a
passphrase-protected bundle.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configDir == "" {
				configDir = defaultConfigDir()
			}
			if configFile == "" {
				configFile = filepath.Join(configDir, "connectors.json")
			}

			cfg.ConfigDir = configDir
			cfg.ConfigPath = configFile
			cfg.Logger = logging.New(debug, noColor)
			cfg.NonInteractive = nonInteractive
		},
	}

	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Configuration directory (default ~/.convault)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Connectors configuration file (default <config-dir>/connectors.json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Never prompt for input")

	rootCmd.AddCommand(
		commands.NewSecretizeCommand(cfg),
		commands.NewSecretsCommand(cfg),
		commands.NewDoctorCommand(cfg),
	)

	return rootCmd.Execute()
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".convault"
	}
	return filepath.Join(home, ".convault")
}
