package commands

import (
	"github.com/plexhub/convault/internal/logging"
	"github.com/plexhub/convault/internal/manage"
	"github.com/plexhub/convault/internal/provider"
)

// Config is the runtime configuration handed to every command
// constructor. It is built once in main's PersistentPreRun; commands hold
// no state of their own.
type Config struct {
	ConfigDir      string
	ConfigPath     string
	Logger         *logging.Logger
	NonInteractive bool
}

// Providers builds the provider set for this configuration directory.
func (c *Config) Providers() *provider.Set {
	return provider.NewSet(c.ConfigDir)
}

// Manager builds the management layer over this configuration.
func (c *Config) Manager() *manage.Manager {
	return manage.New(c.ConfigDir, c.ConfigPath, c.Providers(), c.Logger)
}
