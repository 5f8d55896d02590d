package provider

import (
	"context"
	"encoding/base64"
	"fmt"
)

// Plain is the reversible-encoding provider. It base64-encodes payloads and
// provides no confidentiality; it exists so the vault still functions on
// hosts without an OS keychain. Every surface that reports provider usage
// must warn loudly when this is the provider in effect.
type Plain struct{}

// NewPlain creates the reversible-encoding provider.
func NewPlain() *Plain {
	return &Plain{}
}

func (p *Plain) Type() Type {
	return TypePlain
}

// Available always returns true; plain encoding is the floor.
func (p *Plain) Available() bool {
	return true
}

func (p *Plain) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(plaintext)))
	base64.StdEncoding.Encode(out, plaintext)
	return out, nil
}

func (p *Plain) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.DecodedLen(len(ciphertext)))
	n, err := base64.StdEncoding.Decode(out, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode plain record: %w", err)
	}
	return out[:n], nil
}

var _ Provider = (*Plain)(nil)
