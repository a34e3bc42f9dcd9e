// Package keyfile persists the root token and unseal key shares returned by
// Vault initialization in a single JSON file in the operator's home
// directory.
//
// The file is written once by initialization, read by every authenticated or
// unseal operation and removed on reset. A single operator process is
// assumed; there is no locking.
package keyfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultName is the file name used under the home directory.
const DefaultName = ".vault_lifecycle_keys"

// ErrNotExist is returned when the key file is absent.
var ErrNotExist = errors.New("key file does not exist")

// Keys is the content of the key file.
type Keys struct {
	Keys       []string `json:"keys"`
	KeysBase64 []string `json:"keys_base64,omitempty"`
	RootToken  string   `json:"root_token"`
}

// Store reads and writes the key file at Path.
type Store struct {
	Path string
}

// New returns a store for path. An empty path means DefaultPath().
func New(path string) (*Store, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	return &Store{Path: path}, nil
}

// DefaultPath returns $HOME/.vault_lifecycle_keys.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, DefaultName), nil
}

// Exists reports whether the key file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path)
	return err == nil
}

// Load reads the key file. A missing file yields an error wrapping
// ErrNotExist.
func (s *Store) Load() (*Keys, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", s.Path, ErrNotExist)
		}
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	var keys Keys
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("failed to parse key file %s: %w", s.Path, err)
	}
	return &keys, nil
}

// Token returns the cached root token, or "" when the file does not exist.
func (s *Store) Token() (string, error) {
	keys, err := s.Load()
	if err != nil {
		if errors.Is(err, ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return keys.RootToken, nil
}

// Save writes keys pretty-printed with owner-only permissions.
func (s *Store) Save(keys *Keys) error {
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode key file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create key file directory: %w", err)
	}
	if err := os.WriteFile(s.Path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// Remove deletes the key file. A missing file is not an error.
func (s *Store) Remove() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove key file: %w", err)
	}
	return nil
}
