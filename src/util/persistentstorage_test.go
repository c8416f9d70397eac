package util

import (
	"path/filepath"
	"testing"
)

func TestPersistentStorageRoundtrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "value")

	store, err := NewPersistentStorage(file, 42)
	if err != nil {
		t.Fatal(err)
	}
	if v := store.Value(); v != 42 {
		t.Fatalf("Unexpected initial value: %v", v)
	}
	if err := store.SetValue(77); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewPersistentStorage(file, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v := reopened.Value(); v != 77 {
		t.Fatalf("Value did not survive a reload: %v", v)
	}
}

func TestPersistentStorageInitialValue(t *testing.T) {
	file := filepath.Join(t.TempDir(), "value")

	store, err := NewPersistentStorage(file, []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	v := store.Value()
	if len(v) != 2 || v[0] != "a" || v[1] != "b" {
		t.Fatalf("Unexpected initial value: %v", v)
	}
}
