package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/noah-isme/sheetgrader/internal/models"
)

// CredentialStore caches the authenticated assessor on local disk so a kiosk
// restart does not force a fresh login.
type CredentialStore struct {
	path string
}

// NewCredentialStore uses the given cache file path.
func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path}
}

// Load returns the cached credential, or nil when no one is logged in.
// A corrupt cache file counts as logged out.
func (s *CredentialStore) Load() (*models.Credential, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read credential cache: %w", err)
	}
	var cred models.Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, nil
	}
	if !cred.Authenticated() {
		return nil, nil
	}
	return &cred, nil
}

// Save writes the credential cache atomically.
func (s *CredentialStore) Save(cred *models.Credential) error {
	raw, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write credential cache: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("commit credential cache: %w", err)
	}
	return nil
}

// Clear logs the assessor out by removing the cache file.
func (s *CredentialStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear credential cache: %w", err)
	}
	return nil
}
