package cache

import (
	"errors"
	"testing"
	"time"
)

func TestMemoGetSet(t *testing.T) {
	m := New[string](0)
	if _, err := m.Get("missing"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("err = %v, want miss", err)
	}
	m.Set("a", "one")
	got, err := m.Get("a")
	if err != nil || got != "one" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	m.Delete("a")
	if m.Len() != 0 {
		t.Errorf("len = %d after delete", m.Len())
	}
}

func TestMemoExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	m := New[int](time.Minute)
	m.now = func() time.Time { return now }

	m.Set("k", 42)
	m.Set("other", 7)
	now = now.Add(2 * time.Minute)

	if _, err := m.Get("k"); !errors.Is(err, ErrCacheExpired) {
		t.Fatalf("err = %v, want expired", err)
	}
	if pruned := m.Prune(); pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}
	if m.Len() != 0 {
		t.Errorf("len = %d", m.Len())
	}
}

func TestKeys(t *testing.T) {
	if Key("Artist", "Title") != Key(" artist", "TITLE ") {
		t.Error("Key should fold case and whitespace")
	}
	if Key("a", "bc") == Key("ab", "c") {
		t.Error("Key must separate parts")
	}
	if ContentKey("audio", []byte{1, 2}) == ContentKey("image", []byte{1, 2}) {
		t.Error("ContentKey must include kind")
	}
	if ContentKey("audio", []byte{1, 2}) != ContentKey("audio", []byte{1, 2}) {
		t.Error("ContentKey must be stable")
	}
}
