// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package syncer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sponsorkit/sponsorkit/internal/authflow"
	"github.com/sponsorkit/sponsorkit/internal/skm"
)

// ManifestStore persists one signed sponsor manifest file per
// sponsorable account under the per-user application data directory.
// The file content is the raw signed token, nothing else.
type ManifestStore struct {
	dir string
}

// NewManifestStore creates a store at the default location for the
// active namespace.
func NewManifestStore() (*ManifestStore, error) {
	dir, err := authflow.ConfigDir()
	if err != nil {
		return nil, err
	}
	return NewManifestStoreAt(filepath.Join(dir, "manifests")), nil
}

// NewManifestStoreAt creates a store backed by the given directory.
func NewManifestStoreAt(dir string) *ManifestStore {
	return &ManifestStore{dir: dir}
}

func (s *ManifestStore) path(account string) string {
	return filepath.Join(s.dir, account+".jwt")
}

// Save writes the signed token for the account, fully replacing any
// prior content. Callers must validate the signature first, the store
// never inspects the token.
func (s *ManifestStore) Save(account, token string) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create manifest dir: %w", err)
	}
	if err := os.WriteFile(s.path(account), []byte(token), 0600); err != nil {
		return fmt.Errorf("failed to write manifest for %s: %w", account, err)
	}
	return nil
}

// Load returns the stored token for the account, or skm.ErrNotFound.
func (s *ManifestStore) Load(account string) (string, error) {
	data, err := os.ReadFile(s.path(account))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", skm.ErrNotFound
		}
		return "", fmt.Errorf("failed to read manifest for %s: %w", account, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Remove deletes the stored manifest for the account. Removing a
// missing manifest is not an error.
func (s *ManifestStore) Remove(account string) error {
	err := os.Remove(s.path(account))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove manifest for %s: %w", account, err)
	}
	return nil
}

// List returns the accounts with a stored manifest, sorted by name.
func (s *ManifestStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list manifests: %w", err)
	}

	var accounts []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".jwt") {
			continue
		}
		accounts = append(accounts, strings.TrimSuffix(name, ".jwt"))
	}
	return accounts, nil
}
