package vault

import (
	"errors"
	"strings"
	"testing"
)

const testKey = "0123456789abcdef0123456789abcdef"

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New(testKey)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	return v
}

func TestNew_RejectsBadKeyLength(t *testing.T) {
	for _, key := range []string{"", "short", strings.Repeat("x", 31), strings.Repeat("x", 33)} {
		if _, err := New(key); err == nil {
			t.Fatalf("expected error for key length %d", len(key))
		}
	}
}

func TestEncryptDecrypt_Roundtrip(t *testing.T) {
	v := newTestVault(t)

	secrets := []string{
		"sk-test-1234567890",
		"",
		"日本語のシークレット🔑",
		strings.Repeat("long-", 200),
	}

	for _, secret := range secrets {
		token, err := v.Encrypt(secret)
		if err != nil {
			t.Fatalf("encrypt %q: %v", secret, err)
		}
		got, err := v.Decrypt(token)
		if err != nil {
			t.Fatalf("decrypt %q: %v", secret, err)
		}
		if got != secret {
			t.Fatalf("roundtrip mismatch: got %q want %q", got, secret)
		}
	}
}

func TestEncrypt_TokenFormat(t *testing.T) {
	v := newTestVault(t)

	token, err := v.Encrypt("some-api-key")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		t.Fatalf("expected 3 colon-separated fields, got %d", len(parts))
	}
	if len(parts[0]) != nonceSize*2 {
		t.Fatalf("nonce hex length = %d, want %d", len(parts[0]), nonceSize*2)
	}
	if len(parts[1]) != tagSize*2 {
		t.Fatalf("tag hex length = %d, want %d", len(parts[1]), tagSize*2)
	}
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	v := newTestVault(t)

	first, err := v.Encrypt("same secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	second, err := v.Encrypt("same secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if strings.Split(first, ":")[0] == strings.Split(second, ":")[0] {
		t.Fatal("nonce reused across calls")
	}
}

func TestDecrypt_TamperedTokenFails(t *testing.T) {
	v := newTestVault(t)

	token, err := v.Encrypt("tamper-me-1234")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	flip := func(s string, i int) string {
		b := []byte(s)
		if b[i] == '0' {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
		return string(b)
	}

	parts := strings.Split(token, ":")
	tampered := []string{
		// one hex character of the tag
		parts[0] + ":" + flip(parts[1], 3) + ":" + parts[2],
		// one hex character of the ciphertext
		parts[0] + ":" + parts[1] + ":" + flip(parts[2], 0),
	}

	for _, tok := range tampered {
		got, err := v.Decrypt(tok)
		if !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("tampered token: got (%q, %v), want ErrDecryptionFailed", got, err)
		}
	}
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	v := newTestVault(t)
	token, err := v.Encrypt("cross-key-secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	other, err := New(strings.Repeat("k", 32))
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	if _, err := other.Decrypt(token); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("wrong key: got %v, want ErrDecryptionFailed", err)
	}
}

func TestDecrypt_InvalidFormat(t *testing.T) {
	v := newTestVault(t)

	cases := []string{
		"",
		"justonefield",
		"two:fields",
		"a:b:c:d",
		"zz:0011:2233",                          // nonce not hex
		strings.Repeat("00", 8) + ":0011:2233",  // nonce too short
		strings.Repeat("00", 16) + ":00:2233",   // tag too short
		strings.Repeat("00", 16) + ":" + strings.Repeat("00", 16) + ":xx",
	}

	for _, tok := range cases {
		if _, err := v.Decrypt(tok); !errors.Is(err, ErrInvalidFormat) {
			t.Fatalf("token %q: got %v, want ErrInvalidFormat", tok, err)
		}
	}
}
