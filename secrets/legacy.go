package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
)

// legacyNonceSize is the IV length used by the previous credential format.
const legacyNonceSize = 16

// LegacyCiphertext is the previous at-rest format of a credential: AES-256-GCM
// with a 16 byte IV, every part hex encoded. It is only read, to re-seal old
// vendor documents.
type LegacyCiphertext struct {
	IV            string `json:"iv" bson:"iv"`
	EncryptedData string `json:"encryptedData" bson:"encryptedData"`
	Tag           string `json:"tag" bson:"tag"`
}

// IsZero reports whether the legacy value is empty.
func (lc *LegacyCiphertext) IsZero() bool {
	return lc == nil || lc.IV == "" || lc.Tag == ""
}

// legacyKey zero pads or truncates the secret to 32 bytes.
func legacyKey(secret string) []byte {
	key := make([]byte, 32)
	copy(key, secret)
	return key
}

// OpenLegacy decrypts a credential stored in the legacy format with the legacy
// secret.
func OpenLegacy(secret string, lc *LegacyCiphertext) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	if lc.IsZero() {
		return "", ErrNotSealed
	}
	iv, err := hex.DecodeString(lc.IV)
	if err != nil {
		return "", fmt.Errorf("invalid legacy iv: %w", err)
	}
	data, err := hex.DecodeString(lc.EncryptedData)
	if err != nil {
		return "", fmt.Errorf("invalid legacy data: %w", err)
	}
	tag, err := hex.DecodeString(lc.Tag)
	if err != nil {
		return "", fmt.Errorf("invalid legacy tag: %w", err)
	}
	block, err := aes.NewCipher(legacyKey(secret))
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, legacyNonceSize)
	if err != nil {
		return "", err
	}
	if len(iv) != legacyNonceSize {
		return "", ErrOpenFailed
	}
	plain, err := gcm.Open(nil, iv, append(data, tag...), nil)
	if err != nil {
		return "", ErrOpenFailed
	}
	return string(plain), nil
}
