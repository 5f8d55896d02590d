//go:build darwin

package provider

import (
	"errors"
	"os"

	"github.com/zalando/go-keyring"
)

// darwinKeyringClient uses the macOS Keychain through the security(1)
// facilities go-keyring wraps.
type darwinKeyringClient struct{}

func newPlatformKeyringClient() keyringClient {
	return &darwinKeyringClient{}
}

func (c *darwinKeyringClient) Get(service, account string) (string, error) {
	value, err := keyring.Get(service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", errKeyringItemNotFound
		}
		return "", err
	}
	return value, nil
}

func (c *darwinKeyringClient) Set(service, account, value string) error {
	return keyring.Set(service, account, value)
}

// IsAvailable is unconditionally true on macOS; the Keychain works in both
// graphical and terminal sessions.
func (c *darwinKeyringClient) IsAvailable() bool {
	return true
}

func (c *darwinKeyringClient) IsHeadless() bool {
	// SSH sessions may hit a locked keychain with no way to prompt.
	return os.Getenv("SSH_TTY") != ""
}

var _ keyringClient = (*darwinKeyringClient)(nil)
