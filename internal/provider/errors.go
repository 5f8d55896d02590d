package provider

import (
	"errors"
	"fmt"
)

// ErrUnavailable means a record's provider is not supported on this host.
// It is deliberately distinct from a decryption failure: the record is
// intact, the machine just cannot open it.
var ErrUnavailable = errors.New("encryption provider not available on this host")

// ErrMasterKeyNotFound means the keychain backend has no master key yet.
var ErrMasterKeyNotFound = errors.New("keychain master key not found")

// UnknownTypeError is returned for provider tags this build doesn't know.
type UnknownTypeError struct {
	Type Type
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown encryption provider type: %q", e.Type)
}

// UnavailableError wraps ErrUnavailable with the provider that was asked for.
type UnavailableError struct {
	Type Type
	Err  error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %q unavailable: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("provider %q unavailable", e.Type)
}

func (e *UnavailableError) Unwrap() error {
	return ErrUnavailable
}

// IsUnavailable reports whether err means a provider cannot run on this host.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
