//go:build linux

package provider

import (
	"errors"
	"os"

	"github.com/zalando/go-keyring"
)

// linuxKeyringClient talks to the freedesktop Secret Service
// (gnome-keyring, KWallet, ...) via D-Bus.
type linuxKeyringClient struct{}

func newPlatformKeyringClient() keyringClient {
	return &linuxKeyringClient{}
}

func (c *linuxKeyringClient) Get(service, account string) (string, error) {
	value, err := keyring.Get(service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", errKeyringItemNotFound
		}
		return "", err
	}
	return value, nil
}

func (c *linuxKeyringClient) Set(service, account, value string) error {
	return keyring.Set(service, account, value)
}

// IsAvailable requires a graphical session; Secret Service needs an agent
// that is rarely running without one.
func (c *linuxKeyringClient) IsAvailable() bool {
	return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
}

func (c *linuxKeyringClient) IsHeadless() bool {
	if os.Getenv("SSH_TTY") != "" {
		return true
	}
	if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return true
	}
	if os.Getenv("CI") != "" {
		return true
	}
	return false
}

var _ keyringClient = (*linuxKeyringClient)(nil)
