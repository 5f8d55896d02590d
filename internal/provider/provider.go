// Package provider defines the pluggable at-rest encryption backends used
// by the secret store. Two variants exist: a reversible-encoding fallback
// that is always available, and a platform-native backend that keeps its
// master key in the OS keychain. The variant that produced a ciphertext is
// recorded on every secret record, so decryption dispatch is data-driven.
package provider

import "context"

// Type tags an encryption backend. The tag is persisted on every secret
// record and embedded in every secret reference, so values are part of the
// on-disk format and must never be renamed.
type Type string

const (
	// TypePlain is the reversible-encoding fallback. It provides no
	// confidentiality; callers must surface a warning whenever it is the
	// one in use.
	TypePlain Type = "plain"

	// TypeKeychain is the OS-native backend (Secret Service, macOS
	// Keychain, Windows Credential Manager).
	TypeKeychain Type = "keychain"
)

// Provider encrypts and decrypts secret record payloads.
//
// Decrypt must only ever be called on ciphertext produced by the same
// provider type; the store enforces this by dispatching on the record's
// provider tag. A provider whose Available() is false must fail decryption
// with ErrUnavailable rather than fall back to another provider's path.
type Provider interface {
	Type() Type
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Available() bool
}

// Set holds the constructed providers for one store instance. It is built
// once at the composition root and injected everywhere a provider is
// needed; there is no package-level singleton.
type Set struct {
	providers map[Type]Provider
}

// NewSet builds the provider set for a store rooted at configDir. The
// directory scopes the keychain master key so two stores on one machine
// don't share key material.
func NewSet(configDir string) *Set {
	return &Set{
		providers: map[Type]Provider{
			TypePlain:    NewPlain(),
			TypeKeychain: NewKeychain(configDir),
		},
	}
}

// NewSetWith builds a set from explicit providers. Used by tests to inject
// fakes.
func NewSetWith(providers ...Provider) *Set {
	s := &Set{providers: make(map[Type]Provider, len(providers))}
	for _, p := range providers {
		s.providers[p.Type()] = p
	}
	return s
}

// Best returns the strongest available provider: the keychain backend when
// the host supports it, otherwise the plain fallback. Callers that care
// whether real encryption is in use check Type() on the result.
func (s *Set) Best() Provider {
	if kc, ok := s.providers[TypeKeychain]; ok && kc.Available() {
		return kc
	}
	return s.providers[TypePlain]
}

// Get returns the provider for a specific tag, for decrypting records
// written under a provider other than the current best one. Unknown tags
// return ErrUnknownType.
func (s *Set) Get(t Type) (Provider, error) {
	p, ok := s.providers[t]
	if !ok {
		return nil, &UnknownTypeError{Type: t}
	}
	return p, nil
}
