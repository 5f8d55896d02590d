//go:build !linux && !darwin && !windows

package provider

import "errors"

// unsupportedKeyringClient is the stub for platforms without an OS keyring.
type unsupportedKeyringClient struct{}

func newPlatformKeyringClient() keyringClient {
	return &unsupportedKeyringClient{}
}

func (c *unsupportedKeyringClient) Get(service, account string) (string, error) {
	return "", errors.New("keyring not supported on this platform")
}

func (c *unsupportedKeyringClient) Set(service, account, value string) error {
	return errors.New("keyring not supported on this platform")
}

func (c *unsupportedKeyringClient) IsAvailable() bool {
	return false
}

func (c *unsupportedKeyringClient) IsHeadless() bool {
	return true
}

var _ keyringClient = (*unsupportedKeyringClient)(nil)
