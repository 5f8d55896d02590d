//go:build windows

package provider

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// windowsKeyringClient uses the Windows Credential Manager.
type windowsKeyringClient struct{}

func newPlatformKeyringClient() keyringClient {
	return &windowsKeyringClient{}
}

func (c *windowsKeyringClient) Get(service, account string) (string, error) {
	value, err := keyring.Get(service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", errKeyringItemNotFound
		}
		return "", err
	}
	return value, nil
}

func (c *windowsKeyringClient) Set(service, account, value string) error {
	return keyring.Set(service, account, value)
}

func (c *windowsKeyringClient) IsAvailable() bool {
	return true
}

func (c *windowsKeyringClient) IsHeadless() bool {
	return false
}

var _ keyringClient = (*windowsKeyringClient)(nil)
