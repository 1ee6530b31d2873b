// Copyright 2025 Stefan Prodan.
// SPDX-License-Identifier: AGPL-3.0

package skm

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-jose/go-jose/v4"
)

// RSAKeySet represents a JWK Set object for holding RSA public or private keys.
type RSAKeySet struct {
	// Issuer is the identifier of the entity that issued the keys.
	// It should be present when the set contains a private key.
	// If the set contains only public keys, this field must be empty.
	Issuer string `json:"issuer,omitempty"`
	// Keys is a list of JSON Web Keys (JWKs) that make up the set.
	Keys []jose.JSONWebKey `json:"keys"`
}

// RSAPublicKey is an envelope for an RSA public key and its key ID.
type RSAPublicKey struct {
	// Key is the RSA public key.
	Key *rsa.PublicKey

	// KeyID is the unique identifier for the key.
	KeyID string
}

// RSAPrivateKey is an envelope for an RSA private key,
// including its key ID and issuer information.
type RSAPrivateKey struct {
	// Key is the RSA private key.
	Key *rsa.PrivateKey

	// KeyID is the unique identifier for the key.
	KeyID string

	// Issuer is the identifier of the entity that issued the key.
	Issuer string
}

// NewPublicKeySet creates a new RSAKeySet for holding public keys.
func NewPublicKeySet() *RSAKeySet {
	return &RSAKeySet{
		Keys: []jose.JSONWebKey{},
	}
}

// NewPrivateKeySet creates a new RSAKeySet for holding a private key.
func NewPrivateKeySet(issuer string) *RSAKeySet {
	return &RSAKeySet{
		Issuer: issuer,
		Keys:   []jose.JSONWebKey{},
	}
}

// AddPublicKey adds a new RSA public key to the RSAKeySet.
// The key set is designed to hold multiple public keys.
func (k *RSAKeySet) AddPublicKey(key *rsa.PublicKey, keyID string) error {
	if k.Issuer != "" {
		return fmt.Errorf("cannot add public key to RSAKeySet with issuer set")
	}

	for _, existingKey := range k.Keys {
		if existingKey.KeyID == keyID {
			return fmt.Errorf("key with ID %s already exists in the set", keyID)
		}
	}

	jwk := jose.JSONWebKey{
		Key:       key,
		KeyID:     keyID,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}

	// Prepend the key to the set to ensure the most recent key is first.
	k.Keys = append([]jose.JSONWebKey{jwk}, k.Keys...)
	return nil
}

// AddPrivateKey adds a new RSA private key to the RSAKeySet.
// The key set is designed to hold a single private key.
func (k *RSAKeySet) AddPrivateKey(key *rsa.PrivateKey, keyID string) error {
	if k.Issuer == "" {
		return fmt.Errorf("issuer must be set before adding a private key")
	}

	if len(k.Keys) > 0 {
		return fmt.Errorf("RSAKeySet already contains a private key, cannot add another")
	}

	jwk := jose.JSONWebKey{
		Key:       key,
		KeyID:     keyID,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}

	k.Keys = append(k.Keys, jwk)
	return nil
}

// ToJSON converts the RSAKeySet to a JSON byte slice.
func (k *RSAKeySet) ToJSON() ([]byte, error) {
	return json.MarshalIndent(*k, "", "  ")
}

// WriteFile writes the RSAKeySet to the specified file in JSON format.
// If the set contains a private key, it restricts permissions to owner only (0600)
// and refuses to overwrite an existing file. If the set contains only public
// keys, it allows read for others (0644).
func (k *RSAKeySet) WriteFile(filePath string) error {
	if len(k.Keys) == 0 {
		return fmt.Errorf("cannot write empty RSAKeySet to file")
	}

	data, err := k.ToJSON()
	if err != nil {
		return err
	}

	perm := os.FileMode(0644)

	if k.Issuer != "" {
		// If the issuer is set we assume this is a private key set
		// and restrict permissions to the owner only (0600).
		perm = os.FileMode(0600)

		// Prevent overwriting existing file with private key set.
		if _, err := os.Stat(filePath); !os.IsNotExist(err) {
			return fmt.Errorf("file %s already exists, refusing to overwrite", filePath)
		}
	}

	return os.WriteFile(filePath, data, perm)
}

// RSAKeySetFromJSON creates an RSAKeySet from a JSON byte slice.
func RSAKeySetFromJSON(data []byte) (*RSAKeySet, error) {
	var keySet RSAKeySet
	if err := json.Unmarshal(data, &keySet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal RSAKeySet: %w", err)
	}
	if len(keySet.Keys) == 0 {
		return nil, fmt.Errorf("RSAKeySet has no keys")
	}

	if keySet.Issuer != "" && len(keySet.Keys) > 1 {
		return nil, fmt.Errorf("RSAKeySet with issuer %s cannot contain multiple keys", keySet.Issuer)
	}

	return &keySet, nil
}

// RSAKeySetFromFile reads an RSAKeySet from a JSON file.
func RSAKeySetFromFile(filePath string) (*RSAKeySet, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read RSAKeySet from file %s: %w", filePath, err)
	}
	return RSAKeySetFromJSON(data)
}

// RSAPublicKeyFromSet extracts the first RSA public key from a byte slice
// representing an RSAKeySet in JSON format.
func RSAPublicKeyFromSet(data []byte) (*RSAPublicKey, error) {
	keySet, err := RSAKeySetFromJSON(data)
	if err != nil {
		return nil, err
	}

	for _, key := range keySet.Keys {
		if key.Algorithm != string(jose.RS256) {
			continue
		}
		if key.Use != "sig" {
			continue
		}

		publicKey, ok := key.Key.(*rsa.PublicKey)
		if !ok {
			// Private key sets also satisfy the algorithm and use
			// checks, expose only the public half.
			if privateKey, isPrivate := key.Key.(*rsa.PrivateKey); isPrivate {
				return &RSAPublicKey{
					Key:   &privateKey.PublicKey,
					KeyID: key.KeyID,
				}, nil
			}
			return nil, fmt.Errorf("key with ID %s is not an RSA key", key.KeyID)
		}

		return &RSAPublicKey{
			Key:   publicKey,
			KeyID: key.KeyID,
		}, nil
	}

	return nil, fmt.Errorf("no RSA signing key found in set")
}

// RSAPrivateKeyFromSet extracts the first RSA private key from a byte slice
// representing an RSAKeySet in JSON format.
func RSAPrivateKeyFromSet(data []byte) (*RSAPrivateKey, error) {
	keySet, err := RSAKeySetFromJSON(data)
	if err != nil {
		return nil, err
	}

	firstKey := keySet.Keys[0]
	if firstKey.KeyID == "" {
		return nil, fmt.Errorf("key ID is missing")
	}

	if firstKey.Algorithm != string(jose.RS256) {
		return nil, fmt.Errorf("key has unsupported algorithm %s, expected %s", firstKey.Algorithm, jose.RS256)
	}

	if firstKey.Use != "sig" {
		return nil, fmt.Errorf("key has unsupported use %s, expected 'sig'", firstKey.Use)
	}

	privateKey, ok := firstKey.Key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is not an RSA private key")
	}

	return &RSAPrivateKey{
		Key:    privateKey,
		KeyID:  firstKey.KeyID,
		Issuer: keySet.Issuer,
	}, nil
}
