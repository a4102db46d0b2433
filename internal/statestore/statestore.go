// Package statestore persists the WireGuard private key across daemon
// restarts: a single-field record gob-encoded into a file under the
// user's cache directory (spec.md §4.8), the idiomatic Go analogue of the
// original's directories::ProjectDirs data-local directory plus bincode
// record.
package statestore

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// dirName is the subdirectory created under os.UserCacheDir().
const dirName = "gnosis-vpn"

// fileName is the persisted record's filename.
const fileName = "state.gob"

// filePerm restricts the state file to the owning user: it holds key
// material.
const filePerm = 0o600

// record is the gob-encoded on-disk shape. Only one field today; new
// fields must be added without renumbering to keep old files decodable.
type record struct {
	WireGuardPrivateKey string
}

// Store reads and writes the persisted state file at a fixed path.
type Store struct {
	path string
}

// Open resolves the state file path under os.UserCacheDir(), creating the
// containing directory if necessary. It does not require the file itself
// to exist yet.
func Open() (*Store, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("statestore: resolve cache dir: %w", err)
	}

	dir := filepath.Join(base, dirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("statestore: create %s: %w", dir, err)
	}

	return &Store{path: filepath.Join(dir, fileName)}, nil
}

// OpenAt returns a Store rooted at an explicit path, bypassing
// os.UserCacheDir(). Used by tests and by the daemon's config-reload path
// as a fallback when Open fails.
func OpenAt(path string) *Store {
	return &Store{path: path}
}

// LoadWireGuardPrivateKey returns the persisted private key, or ("", nil)
// if no state file exists yet or the file is empty.
func (s *Store) LoadWireGuardPrivateKey() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}

		return "", fmt.Errorf("statestore: read %s: %w", s.path, err)
	}

	if len(data) == 0 {
		return "", nil
	}

	var rec record
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return "", fmt.Errorf("statestore: decode %s: %w", s.path, err)
	}

	return rec.WireGuardPrivateKey, nil
}

// SaveWireGuardPrivateKey persists key, overwriting any prior record.
func (s *Store) SaveWireGuardPrivateKey(key string) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(record{WireGuardPrivateKey: key}); err != nil {
		return fmt.Errorf("statestore: encode: %w", err)
	}

	if err := os.WriteFile(s.path, buf.Bytes(), filePerm); err != nil {
		return fmt.Errorf("statestore: write %s: %w", s.path, err)
	}

	return nil
}
