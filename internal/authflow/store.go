// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package authflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// NamespaceEnvVar overrides the configuration namespace, letting
// multiple products share the machinery without sharing credentials.
const NamespaceEnvVar = "SPONSOR_NAMESPACE"

const defaultNamespace = "sponsorkit"

// Namespace returns the configuration namespace for credential and
// manifest storage.
func Namespace() string {
	if ns := os.Getenv(NamespaceEnvVar); ns != "" {
		return ns
	}
	return defaultNamespace
}

// ConfigDir returns the per-user directory for the active namespace.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine config dir: %w", err)
	}
	return filepath.Join(base, Namespace()), nil
}

type credential struct {
	Host        string    `json:"host"`
	ClientID    string    `json:"client_id"`
	AccessToken string    `json:"access_token"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists OAuth access tokens in a single JSON file with owner
// only permissions, keyed by host and client ID.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store at the default location for the active
// namespace.
func NewStore() (*Store, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return NewStoreAt(filepath.Join(dir, "credentials.json")), nil
}

// NewStoreAt creates a store backed by the given file path.
func NewStoreAt(path string) *Store {
	return &Store{path: path}
}

// Get returns the stored access token for the host and client ID, or
// ErrMissingCredentials when none exists.
func (s *Store) Get(host, clientID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.load()
	if err != nil {
		return "", err
	}
	for _, c := range creds {
		if c.Host == host && c.ClientID == clientID {
			return c.AccessToken, nil
		}
	}
	return "", ErrMissingCredentials
}

// Set stores or replaces the access token for the host and client ID.
func (s *Store) Set(host, clientID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.load()
	if err != nil {
		return err
	}

	updated := credential{
		Host:        host,
		ClientID:    clientID,
		AccessToken: token,
		CreatedAt:   time.Now().UTC(),
	}
	replaced := false
	for i, c := range creds {
		if c.Host == host && c.ClientID == clientID {
			creds[i] = updated
			replaced = true
			break
		}
	}
	if !replaced {
		creds = append(creds, updated)
	}
	return s.save(creds)
}

// Delete removes the credential for the host and client ID. Deleting a
// missing credential is not an error.
func (s *Store) Delete(host, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.load()
	if err != nil {
		return err
	}
	kept := creds[:0]
	for _, c := range creds {
		if c.Host != host || c.ClientID != clientID {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(creds) {
		return nil
	}
	return s.save(kept)
}

func (s *Store) load() ([]credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credential store: %w", err)
	}

	var creds []credential
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credential store: %w", err)
	}
	return creds, nil
}

func (s *Store) save(creds []credential) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create credential store dir: %w", err)
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credential store: %w", err)
	}
	return nil
}
