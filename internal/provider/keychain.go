package provider

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const (
	keyringService = "convault"

	masterKeySize = 32 // AES-256
	gcmNonceSize  = 12
)

// keyringClient abstracts the OS keyring. The real implementation is chosen
// per platform (see keychain_linux.go and friends); tests inject a fake.
type keyringClient interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
	IsAvailable() bool
	IsHeadless() bool
}

// errKeyringItemNotFound is returned by keyring clients when no item exists
// under the requested service/account.
var errKeyringItemNotFound = errors.New("keyring item not found")

// Keychain is the platform-native provider. It keeps one random 256-bit
// master key per store in the OS keyring and encrypts record payloads with
// AES-256-GCM under it. Ciphertext layout: nonce || sealed payload.
type Keychain struct {
	account string
	client  keyringClient
}

// NewKeychain creates the platform-native provider for the store rooted at
// configDir. The keyring account is derived from the directory path so two
// stores on one machine get distinct master keys.
func NewKeychain(configDir string) *Keychain {
	return &Keychain{
		account: keyringAccount(configDir),
		client:  newPlatformKeyringClient(),
	}
}

// NewKeychainWithClient creates a keychain provider with a custom keyring
// client. This is primarily for testing.
func NewKeychainWithClient(configDir string, client keyringClient) *Keychain {
	return &Keychain{
		account: keyringAccount(configDir),
		client:  client,
	}
}

func keyringAccount(configDir string) string {
	sum := sha256.Sum256([]byte(configDir))
	return fmt.Sprintf("store-%x", sum[:8])
}

func (k *Keychain) Type() Type {
	return TypeKeychain
}

// Available reports whether the OS keyring can be used here. Headless
// sessions are treated as unavailable: prompting for keyring access from a
// CI job or an SSH session only hangs.
func (k *Keychain) Available() bool {
	return k.client.IsAvailable() && !k.client.IsHeadless()
}

func (k *Keychain) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !k.Available() {
		return nil, &UnavailableError{Type: TypeKeychain}
	}

	key, err := k.loadOrCreateMasterKey()
	if err != nil {
		return nil, err
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return append(nonce, aead.Seal(nil, nonce, plaintext, nil)...), nil
}

func (k *Keychain) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !k.Available() {
		return nil, &UnavailableError{Type: TypeKeychain}
	}
	if len(ciphertext) < gcmNonceSize {
		return nil, errors.New("keychain record too short")
	}

	key, err := k.loadMasterKey()
	if err != nil {
		if errors.Is(err, errKeyringItemNotFound) {
			// The record was written on a machine whose master key this
			// keyring doesn't hold. That's an availability problem, not a
			// corrupt record.
			return nil, &UnavailableError{Type: TypeKeychain, Err: ErrMasterKeyNotFound}
		}
		return nil, err
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, sealed := ciphertext[:gcmNonceSize], ciphertext[gcmNonceSize:]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt keychain record: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return aead, nil
}

func (k *Keychain) loadMasterKey() ([]byte, error) {
	encoded, err := k.client.Get(keyringService, k.account)
	if err != nil {
		return nil, err
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}
	if len(key) != masterKeySize {
		return nil, fmt.Errorf("master key has wrong size: %d bytes", len(key))
	}
	return key, nil
}

func (k *Keychain) loadOrCreateMasterKey() ([]byte, error) {
	key, err := k.loadMasterKey()
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, errKeyringItemNotFound) {
		return nil, err
	}

	key = make([]byte, masterKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate master key: %w", err)
	}
	if err := k.client.Set(keyringService, k.account, base64.StdEncoding.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("store master key in keyring: %w", err)
	}
	return key, nil
}

var _ Provider = (*Keychain)(nil)
