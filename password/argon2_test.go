package password

import (
	"strings"
	"testing"
)

func cheapHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := cheapHasher(t)

	encoded, err := h.Hash("correct-horse-battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$") {
		t.Fatalf("unexpected PHC prefix: %q", encoded)
	}

	ok, err := h.Verify("correct-horse-battery", encoded)
	if err != nil || !ok {
		t.Fatalf("expected match, ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("wrong-password", encoded)
	if err != nil || ok {
		t.Fatalf("expected mismatch, ok=%v err=%v", ok, err)
	}
}

func TestHashesAreSalted(t *testing.T) {
	h := cheapHasher(t)

	a, err := h.Hash("same-password-123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	b, err := h.Hash("same-password-123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct salts to produce distinct hashes")
	}
}

func TestVerifyUsesEmbeddedParameters(t *testing.T) {
	weak := cheapHasher(t)
	strong, err := NewHasher(Config{})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	encoded, err := weak.Hash("migrating-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	// A hasher configured with different costs must still verify hashes
	// produced under the old parameters.
	ok, err := strong.Verify("migrating-password", encoded)
	if err != nil || !ok {
		t.Fatalf("expected cross-parameter verify, ok=%v err=%v", ok, err)
	}
}

func TestVerifyRejectsMalformedEncodings(t *testing.T) {
	h := cheapHasher(t)

	for _, encoded := range []string{
		"",
		"plaintext",
		"$bcrypt$whatever",
		"$argon2id$v=19$m=8192,t=1,p=1$notbase64!!$x",
	} {
		if _, err := h.Verify("password", encoded); err == nil {
			t.Fatalf("expected error for %q", encoded)
		}
	}
}

func TestNewHasherRejectsWeakParameters(t *testing.T) {
	if _, err := NewHasher(Config{Memory: 1024, SaltLength: 16, KeyLength: 16, Time: 1, Parallelism: 1}); err == nil {
		t.Fatal("expected low memory rejected")
	}
	if _, err := NewHasher(Config{Memory: 8 * 1024, SaltLength: 8, KeyLength: 16, Time: 1, Parallelism: 1}); err == nil {
		t.Fatal("expected short salt rejected")
	}
}

func TestHashRejectsEmptyPassword(t *testing.T) {
	h := cheapHasher(t)
	if _, err := h.Hash(""); err == nil {
		t.Fatal("expected empty password rejected")
	}
}
