// Package secrets seals vendor processor credentials before they are persisted
// and opens them again at the moment a processor adapter needs them. Sealing
// uses XChaCha20-Poly1305 with a random nonce per write and a key derived with
// HKDF-SHA256 from the service secret. The vendor key is bound as associated
// data, so a sealed credential copied to another vendor does not open.
package secrets

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/cancelready/backend/internal"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// SealVersion identifies the sealing scheme stored with every credential.
const SealVersion = 1

// hkdfInfo is the HKDF context string for credential sealing keys.
const hkdfInfo = "cancelready/credential-seal/v1"

var (
	// ErrEmptySecret is returned when the box is created without a secret.
	ErrEmptySecret = fmt.Errorf("sealing secret is required")
	// ErrEmptyCredential is returned when sealing an empty credential.
	ErrEmptyCredential = fmt.Errorf("credential is empty")
	// ErrNotSealed is returned when opening an empty sealed value.
	ErrNotSealed = fmt.Errorf("credential is not sealed")
	// ErrUnsupportedVersion is returned for sealed values of unknown schemes.
	ErrUnsupportedVersion = fmt.Errorf("unsupported seal version")
	// ErrOpenFailed is returned when the authentication of a sealed value
	// fails (wrong secret, wrong vendor or tampered data).
	ErrOpenFailed = fmt.Errorf("could not open sealed credential")
)

// Sealed is the at-rest form of a credential.
type Sealed struct {
	Version    int    `json:"version" bson:"version"`
	Nonce      []byte `json:"nonce" bson:"nonce"`
	Ciphertext []byte `json:"ciphertext" bson:"ciphertext"`
}

// IsZero reports whether the sealed value is empty.
func (s *Sealed) IsZero() bool {
	return s == nil || len(s.Nonce) == 0 || len(s.Ciphertext) == 0
}

// Box seals and opens credentials with a key derived from the service secret.
// It is safe for concurrent use.
type Box struct {
	key []byte
}

// NewBox derives the sealing key from the secret provided. The secret must be
// injected by the caller; there is no default.
func NewBox(secret string) (*Box, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("could not derive sealing key: %w", err)
	}
	return &Box{key: key}, nil
}

// Seal encrypts the credential of the vendor identified by vendorKey. Every
// call uses a fresh random nonce, so sealing the same value twice produces
// different ciphertexts.
func (b *Box) Seal(vendorKey, credential string) (*Sealed, error) {
	if credential == "" {
		return nil, ErrEmptyCredential
	}
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return nil, err
	}
	nonce := internal.RandomBytes(aead.NonceSize())
	return &Sealed{
		Version:    SealVersion,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, []byte(credential), []byte(vendorKey)),
	}, nil
}

// Open decrypts a credential sealed for the vendor identified by vendorKey.
func (b *Box) Open(vendorKey string, sealed *Sealed) (string, error) {
	if sealed.IsZero() {
		return "", ErrNotSealed
	}
	if sealed.Version != SealVersion {
		return "", fmt.Errorf("%w: %d", ErrUnsupportedVersion, sealed.Version)
	}
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", err
	}
	if len(sealed.Nonce) != aead.NonceSize() {
		return "", ErrOpenFailed
	}
	plain, err := aead.Open(nil, sealed.Nonce, sealed.Ciphertext, []byte(vendorKey))
	if err != nil {
		return "", ErrOpenFailed
	}
	return string(plain), nil
}
