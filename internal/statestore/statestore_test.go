package statestore_test

import (
	"path/filepath"
	"testing"

	"github.com/gnosisvpn/gnosisvpnd/internal/statestore"
)

func TestLoadOnMissingFileReturnsEmpty(t *testing.T) {
	t.Parallel()

	s := statestore.OpenAt(filepath.Join(t.TempDir(), "state.gob"))

	key, err := s.LoadWireGuardPrivateKey()
	if err != nil {
		t.Fatalf("LoadWireGuardPrivateKey: %v", err)
	}

	if key != "" {
		t.Errorf("key = %q, want empty", key)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	t.Parallel()

	s := statestore.OpenAt(filepath.Join(t.TempDir(), "state.gob"))

	const want = "dGVzdC1wcml2YXRlLWtleQ=="
	if err := s.SaveWireGuardPrivateKey(want); err != nil {
		t.Fatalf("SaveWireGuardPrivateKey: %v", err)
	}

	got, err := s.LoadWireGuardPrivateKey()
	if err != nil {
		t.Fatalf("LoadWireGuardPrivateKey: %v", err)
	}

	if got != want {
		t.Errorf("LoadWireGuardPrivateKey() = %q, want %q", got, want)
	}
}

func TestSaveOverwritesPriorRecord(t *testing.T) {
	t.Parallel()

	s := statestore.OpenAt(filepath.Join(t.TempDir(), "state.gob"))

	if err := s.SaveWireGuardPrivateKey("first"); err != nil {
		t.Fatalf("first SaveWireGuardPrivateKey: %v", err)
	}

	if err := s.SaveWireGuardPrivateKey("second"); err != nil {
		t.Fatalf("second SaveWireGuardPrivateKey: %v", err)
	}

	got, err := s.LoadWireGuardPrivateKey()
	if err != nil {
		t.Fatalf("LoadWireGuardPrivateKey: %v", err)
	}

	if got != "second" {
		t.Errorf("LoadWireGuardPrivateKey() = %q, want %q", got, "second")
	}
}

func TestOpenCreatesCacheDirectory(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	s, err := statestore.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := s.SaveWireGuardPrivateKey("k"); err != nil {
		t.Fatalf("SaveWireGuardPrivateKey: %v", err)
	}
}
