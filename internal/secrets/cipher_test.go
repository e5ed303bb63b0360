package secrets

import (
	"strings"
	"testing"
)

func TestCipherRoundtrip(t *testing.T) {
	c, err := NewCipher("test-passphrase")
	if err != nil {
		t.Fatalf("NewCipher() error = %v", err)
	}

	enc, err := c.Encrypt("sk-super-secret-value")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if enc == "sk-super-secret-value" {
		t.Fatal("Encrypt() returned plaintext")
	}

	dec, err := c.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if dec != "sk-super-secret-value" {
		t.Errorf("Decrypt() = %q, want original plaintext", dec)
	}
}

func TestCipherNonceVariance(t *testing.T) {
	c, _ := NewCipher("test-passphrase")

	a, _ := c.Encrypt("same")
	b, _ := c.Encrypt("same")
	if a == b {
		t.Error("two encryptions of the same plaintext should differ")
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	c1, _ := NewCipher("key-one")
	c2, _ := NewCipher("key-two")

	enc, _ := c1.Encrypt("value")
	if _, err := c2.Decrypt(enc); err == nil {
		t.Error("Decrypt() with wrong key should fail")
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"long value", "sk-abcdef123456", "sk-…456"},
		{"seven chars", "abcdefg", "abc…efg"},
		{"six chars", "abcdef", "***"},
		{"short value", "ab", "***"},
		{"empty", "", "***"},
		{"multi-byte runes", "päßwörtchén", "päß…hén"},
		{"six runes multi-byte", "ääääää", "***"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mask(tt.value); got != tt.want {
				t.Errorf("Mask(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestMask_NeverLeaksMiddle(t *testing.T) {
	secret := "sk-proj-ABCDEFGHIJKLMNOP"
	masked := Mask(secret)
	if strings.Contains(masked, "ABCDEFGHIJKLMN") {
		t.Errorf("Mask(%q) = %q leaks the middle of the secret", secret, masked)
	}
}
