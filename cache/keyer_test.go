package cache

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultKeyer_Deterministic(t *testing.T) {
	k := NewDefaultKeyer()

	a, err := k.Key("sophia", "student@example.com")
	if err != nil {
		t.Fatalf("Key() error: %v", err)
	}
	b, _ := k.Key("sophia", "student@example.com")
	if a != b {
		t.Errorf("same identity produced different keys: %q vs %q", a, b)
	}
}

func TestDefaultKeyer_Format(t *testing.T) {
	key, err := NewDefaultKeyer().Key("sophia", "student@example.com")
	if err != nil {
		t.Fatalf("Key() error: %v", err)
	}

	parts := strings.Split(key, ":")
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d: %q", len(parts), key)
	}
	if parts[0] != "sophia" {
		t.Errorf("namespace = %q, want sophia", parts[0])
	}
	if len(parts[1]) != 16 {
		t.Errorf("hash length = %d, want 16", len(parts[1]))
	}
	if strings.Contains(key, "student") {
		t.Errorf("key leaks identity: %q", key)
	}
}

func TestDefaultKeyer_ExactIdentity(t *testing.T) {
	k := NewDefaultKeyer()

	seen := map[string]string{}
	for _, id := range []string{"Alice", "alice", " alice "} {
		key, err := k.Key("ns", id)
		if err != nil {
			t.Fatalf("Key(%q) error: %v", id, err)
		}
		if prev, ok := seen[key]; ok {
			t.Errorf("%q and %q share key %q", prev, id, key)
		}
		seen[key] = id
	}

	a, _ := k.Key("ns", "alice")
	c, _ := k.Key("other", "alice")
	if a == c {
		t.Error("different namespaces should produce different keys")
	}
}

func TestDefaultKeyer_WithCaseFold(t *testing.T) {
	k := NewDefaultKeyer(WithCaseFold())

	a, _ := k.Key("ns", "Student@Example.com ")
	b, _ := k.Key("ns", "student@example.com")
	if a != b {
		t.Errorf("case/whitespace variants should share a key: %q vs %q", a, b)
	}
}

func TestDefaultKeyer_RejectsInvalid(t *testing.T) {
	if _, err := NewDefaultKeyer().Key("ns", " "); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Key() error = %v, want ErrInvalidKey", err)
	}
}

func TestFingerprint(t *testing.T) {
	if Fingerprint("a@x.io") == Fingerprint("b@x.io") {
		t.Error("distinct identities should have distinct fingerprints")
	}
	if got := len(Fingerprint("a@x.io")); got != 16 {
		t.Errorf("len(Fingerprint) = %d, want 16", got)
	}
}
