package internal

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	EmailRegexTemplate = `^[\w.\+\.\-]+@([\w\-]+\.)+[\w]{2,}$`
	// VendorKeyPrefix is prepended to every generated vendor key so keys are
	// recognizable in logs and support tickets.
	VendorKeyPrefix = "vk_"
)

var emailRegex = regexp.MustCompile(EmailRegexTemplate)

// ValidEmail helper function allows to validate an email address.
func ValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// RandomBytes helper function allows to generate a random byte slice of n bytes.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		panic(err)
	}
	return b
}

// RandomHex helper function allows to generate a random hex string of n bytes.
func RandomHex(n int) string {
	return fmt.Sprintf("%x", RandomBytes(n))
}

// NewVendorKey generates a new opaque vendor key. The key is a random UUID
// without dashes, prefixed with VendorKeyPrefix.
func NewVendorKey() string {
	return VendorKeyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Mask returns a redacted hint of a secret value, keeping only the last four
// characters. Values of four characters or less are fully redacted.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "********" + secret[len(secret)-4:]
}
