package credentials

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

func TestStore_APIKeyRoundTrip(t *testing.T) {
	store := NewStore(keyring.NewArrayKeyring(nil))

	if _, err := store.APIKey(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("APIKey() on empty store error = %v, want ErrNotFound", err)
	}

	if err := store.SetAPIKey("_first"); err != nil {
		t.Fatalf("SetAPIKey() error = %v", err)
	}
	if err := store.SetAPIKey("_second"); err != nil {
		t.Fatalf("SetAPIKey() error = %v", err)
	}

	key, err := store.APIKey()
	if err != nil {
		t.Fatalf("APIKey() error = %v", err)
	}
	if key != "_second" {
		t.Errorf("APIKey() = %q, want %q", key, "_second")
	}

	if err := store.DeleteAPIKey(); err != nil {
		t.Fatalf("DeleteAPIKey() error = %v", err)
	}
	if _, err := store.APIKey(); !errors.Is(err, ErrNotFound) {
		t.Errorf("APIKey() after delete error = %v, want ErrNotFound", err)
	}
}

func TestStore_SetEmptyKey(t *testing.T) {
	store := NewStore(keyring.NewArrayKeyring(nil))
	if err := store.SetAPIKey(""); err == nil {
		t.Error("SetAPIKey(\"\") error = nil, want error")
	}
}

func TestStore_DeleteMissing(t *testing.T) {
	store := NewStore(keyring.NewArrayKeyring(nil))
	if err := store.DeleteAPIKey(); err != nil {
		t.Errorf("DeleteAPIKey() on empty store error = %v", err)
	}
}

func TestOpen_FileBackend(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir, "test-password")
	if err != nil {
		t.Skipf("keyring not available: %v", err)
	}
	if err := store.SetAPIKey("_file"); err != nil {
		t.Skipf("keyring backend not writable: %v", err)
	}
	defer store.DeleteAPIKey()

	key, err := store.APIKey()
	if err != nil {
		t.Fatalf("APIKey() error = %v", err)
	}
	if key != "_file" {
		t.Errorf("APIKey() = %q, want %q", key, "_file")
	}
}
