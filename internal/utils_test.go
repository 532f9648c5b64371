package internal

import (
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestValidEmail(t *testing.T) {
	c := qt.New(t)
	c.Assert(ValidEmail("user@example.com"), qt.IsTrue)
	c.Assert(ValidEmail("user+tag@mail.example.org"), qt.IsTrue)
	c.Assert(ValidEmail("user@"), qt.IsFalse)
	c.Assert(ValidEmail("not an email"), qt.IsFalse)
}

func TestNewVendorKey(t *testing.T) {
	c := qt.New(t)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		key := NewVendorKey()
		c.Assert(strings.HasPrefix(key, VendorKeyPrefix), qt.IsTrue)
		c.Assert(key, qt.HasLen, len(VendorKeyPrefix)+32)
		c.Assert(strings.Contains(key, "-"), qt.IsFalse)
		c.Assert(seen[key], qt.IsFalse)
		seen[key] = true
	}
}

func TestMask(t *testing.T) {
	c := qt.New(t)
	c.Assert(Mask(""), qt.Equals, "")
	c.Assert(Mask("abc"), qt.Equals, "****")
	c.Assert(Mask("sk_test_abcd1234"), qt.Equals, "********1234")
	c.Assert(strings.Contains(Mask("sk_test_abcd1234"), "sk_test"), qt.IsFalse)
}

func TestRandomHex(t *testing.T) {
	c := qt.New(t)
	c.Assert(RandomHex(16), qt.HasLen, 32)
	c.Assert(RandomHex(16), qt.Not(qt.Equals), RandomHex(16))
}
