package manage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"

	"github.com/plexhub/convault/internal/secure"
)

// Bundle file format: version 1, scrypt KDF, AES-256-GCM payload, and an
// HMAC over the KDF/cipher metadata keyed with the derived key. The HMAC
// is checked before any decryption is attempted; it is the only defense
// against tampering with the KDF parameters themselves, and it also
// proves the passphrase without running the cipher.

const (
	bundleVersion = 1

	kdfName    = "scrypt"
	scryptN    = 32768
	scryptR    = 8
	scryptP    = 1
	derivedLen = 32

	cipherName     = "aes-256-gcm"
	bundleSaltSize = 16
	bundleIVSize   = 12
	gcmTagSize     = 16
)

// ErrBundleIntegrity covers both a wrong passphrase and tampered
// metadata. The two are deliberately indistinguishable: telling an
// attacker which one they hit helps only the attacker.
var ErrBundleIntegrity = errors.New("bundle integrity check failed: wrong passphrase or tampered file")

// ErrDecryptFailed is an AEAD authentication failure after the metadata
// check already passed. Seeing it means payload corruption rather than a
// bad passphrase.
var ErrDecryptFailed = errors.New("bundle payload decryption failed")

// ErrUnsupportedBundleVersion is returned for bundle files written by a
// newer (or unknown) format revision.
var ErrUnsupportedBundleVersion = errors.New("unsupported bundle version")

// KDFParams records how the bundle key was derived.
type KDFParams struct {
	Name   string `json:"name"`
	Salt   string `json:"salt"`
	N      int    `json:"N"`
	R      int    `json:"r"`
	P      int    `json:"p"`
	KeyLen int    `json:"keyLen"`
}

// CipherParams records the AEAD algorithm, nonce and detached tag.
type CipherParams struct {
	Name    string `json:"name"`
	IV      string `json:"iv"`
	AuthTag string `json:"authTag"`
}

// Bundle is the serialized export file. All binary fields are base64.
type Bundle struct {
	Version      int          `json:"version"`
	KDF          KDFParams    `json:"kdf"`
	Cipher       CipherParams `json:"cipher"`
	Payload      string       `json:"payload"`
	MetadataHMAC string       `json:"metadataHmac"`
}

// ExportEntry is one bound secret inside the decrypted payload.
type ExportEntry struct {
	ConnectorID string `json:"connector_id"`
	EnvKey      string `json:"env_key"`
	Value       string `json:"value"` // base64 plaintext bytes
}

func deriveBundleKey(passphrase string, salt []byte) (*secure.Buffer, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, derivedLen)
	if err != nil {
		return nil, fmt.Errorf("derive bundle key: %w", err)
	}
	buf := secure.NewBuffer(key)
	for i := range key {
		key[i] = 0
	}
	return buf, nil
}

// metadataMAC computes the keyed hash over version + KDF + cipher
// parameters. The canonical string must never change shape within a
// bundle version; it is part of the format.
func metadataMAC(key []byte, version int, kdf KDFParams, cp CipherParams) []byte {
	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%d|%s|%s|%d|%d|%d|%d|%s|%s|%s",
		version, kdf.Name, kdf.Salt, kdf.N, kdf.R, kdf.P, kdf.KeyLen,
		cp.Name, cp.IV, cp.AuthTag)
	return mac.Sum(nil)
}

// sealBundle encrypts the entry list under a passphrase-derived key.
func sealBundle(passphrase string, entries []ExportEntry) (*Bundle, error) {
	payload, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode bundle payload: %w", err)
	}

	salt := make([]byte, bundleSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	keyBuf, err := deriveBundleKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	defer keyBuf.Destroy()

	locked, err := keyBuf.Open()
	if err != nil {
		return nil, err
	}
	defer locked.Destroy()

	block, err := aes.NewCipher(locked.Bytes())
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	iv := make([]byte, bundleIVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, iv, payload, nil)
	ciphertext, tag := sealed[:len(sealed)-gcmTagSize], sealed[len(sealed)-gcmTagSize:]

	b := &Bundle{
		Version: bundleVersion,
		KDF: KDFParams{
			Name:   kdfName,
			Salt:   base64.StdEncoding.EncodeToString(salt),
			N:      scryptN,
			R:      scryptR,
			P:      scryptP,
			KeyLen: derivedLen,
		},
		Cipher: CipherParams{
			Name:    cipherName,
			IV:      base64.StdEncoding.EncodeToString(iv),
			AuthTag: base64.StdEncoding.EncodeToString(tag),
		},
		Payload: base64.StdEncoding.EncodeToString(ciphertext),
	}
	b.MetadataHMAC = base64.StdEncoding.EncodeToString(
		metadataMAC(locked.Bytes(), b.Version, b.KDF, b.Cipher))

	return b, nil
}

// openBundle re-derives the key, verifies the metadata HMAC, and only
// then decrypts the payload.
func openBundle(passphrase string, b *Bundle) ([]ExportEntry, error) {
	if b.Version != bundleVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBundleVersion, b.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(b.KDF.Salt)
	if err != nil {
		return nil, ErrBundleIntegrity
	}
	recordedMAC, err := base64.StdEncoding.DecodeString(b.MetadataHMAC)
	if err != nil {
		return nil, ErrBundleIntegrity
	}

	keyBuf, err := deriveBundleKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	defer keyBuf.Destroy()

	locked, err := keyBuf.Open()
	if err != nil {
		return nil, err
	}
	defer locked.Destroy()

	expected := metadataMAC(locked.Bytes(), b.Version, b.KDF, b.Cipher)
	if !hmac.Equal(expected, recordedMAC) {
		return nil, ErrBundleIntegrity
	}

	iv, err := base64.StdEncoding.DecodeString(b.Cipher.IV)
	if err != nil {
		return nil, ErrBundleIntegrity
	}
	tag, err := base64.StdEncoding.DecodeString(b.Cipher.AuthTag)
	if err != nil {
		return nil, ErrBundleIntegrity
	}
	ciphertext, err := base64.StdEncoding.DecodeString(b.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: bad payload encoding", ErrDecryptFailed)
	}

	block, err := aes.NewCipher(locked.Bytes())
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	payload, err := aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}

	var entries []ExportEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("decode bundle payload: %w", err)
	}
	return entries, nil
}
